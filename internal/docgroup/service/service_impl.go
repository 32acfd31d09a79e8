package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/logiport/logiport/internal/actorctx"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/clock"
	"github.com/logiport/logiport/internal/config"
	"github.com/logiport/logiport/internal/docgroup/domain"
	obsmetrics "github.com/logiport/logiport/internal/observability/metrics"
	transactiondomain "github.com/logiport/logiport/internal/transaction/domain"
	"github.com/logiport/logiport/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// seqRetries bounds how often Ensure replays after losing the race on the
// (year, month, seq) unique index.
const seqRetries = 5

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Numbering *config.NumberingConfigHolder
	Audit     auditdomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	numbering *config.NumberingConfigHolder
	audit     auditdomain.Service
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("docgroup.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		numbering: p.Numbering,
		audit:     p.Audit,
		metrics:   p.Metrics,
	}
}

// Ensure returns the group already issued for this transaction and document
// code, or allocates one. Allocation takes MAX(seq)+1 for the current month
// inside one store transaction and replays on unique conflicts, so a monthly
// sequence is never handed out twice.
func (s *Service) Ensure(ctx context.Context, transactionID snowflake.ID, docCode string) (*domain.DocGroup, error) {
	docCode = strings.TrimSpace(docCode)
	if docCode == "" {
		return nil, domain.ErrInvalidDocCode
	}

	transactionNo, err := s.repo.TransactionNumber(ctx, s.db, transactionID)
	if err != nil {
		return nil, err
	}
	if transactionNo == "" {
		return nil, transactiondomain.ErrTransactionNotFound
	}

	docNo := s.buildDocNo(docCode, transactionNo)

	existing, err := s.repo.FindByTransactionAndDocNo(ctx, s.db, transactionID, docNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	var lastErr error
	for attempt := 0; attempt < seqRetries; attempt++ {
		group := domain.DocGroup{
			ID:            s.genID.Generate(),
			TransactionID: transactionID,
			DocNo:         docNo,
			Year:          now.Year(),
			Month:         int(now.Month()),
			CreatedBy:     actorIDFromContext(ctx),
			CreatedAt:     now,
		}

		lastErr = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			maxSeq, err := s.repo.MaxSeq(ctx, tx, group.Year, group.Month)
			if err != nil {
				return err
			}
			group.Seq = maxSeq + 1
			return s.repo.Insert(ctx, tx, &group)
		})
		if lastErr == nil {
			s.metrics.RecordDocNumberIssued(ctx, docCode)
			s.audit.RecordChange(ctx, "create", "doc_groups", int64(group.ID), nil, map[string]any{
				"transaction_id": int64(transactionID),
				"doc_no":         docNo,
				"year":           group.Year,
				"month":          group.Month,
				"seq":            group.Seq,
			})
			return &group, nil
		}
		if !db.IsDuplicateKeyErr(lastErr) {
			return nil, lastErr
		}

		// A concurrent Ensure for the same transaction and code may have won.
		existing, err := s.repo.FindByTransactionAndDocNo(ctx, s.db, transactionID, docNo)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		obsmetrics.Numbering().ObserveDocGroupSeqRetry()
		s.log.Debug("doc group sequence retry",
			zap.String("doc_no", docNo),
			zap.Int("attempt", attempt+1),
		)
	}

	s.log.Error("doc group allocation exhausted retries", zap.String("doc_no", docNo), zap.Error(lastErr))
	return nil, domain.ErrDuplicateSeq
}

func (s *Service) ListByTransaction(ctx context.Context, transactionID snowflake.ID) ([]domain.DocGroup, error) {
	return s.repo.ListByTransaction(ctx, s.db, transactionID)
}

// FileName renders the on-disk name for a generated document, with the doc
// number kept verbatim apart from path separators.
func (s *Service) FileName(group *domain.DocGroup, docCode string) string {
	if group == nil {
		return ""
	}
	base := sanitizeDocNo(group.DocNo)
	return fmt.Sprintf("%s_%s.pdf", base, slug.Make(docCode))
}

func (s *Service) buildDocNo(docCode, transactionNo string) string {
	prefix := s.numbering.Get().PrefixForDocCode(docCode)
	return sanitizeDocNo(prefix + "-" + transactionNo)
}

func sanitizeDocNo(docNo string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-")
	return replacer.Replace(strings.TrimSpace(docNo))
}

func actorIDFromContext(ctx context.Context) *int64 {
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok || actor.ID == 0 {
		return nil
	}
	id := int64(actor.ID)
	return &id
}
