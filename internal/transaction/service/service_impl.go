package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/logiport/logiport/internal/actorctx"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/clock"
	numberingdomain "github.com/logiport/logiport/internal/numbering/domain"
	obsmetrics "github.com/logiport/logiport/internal/observability/metrics"
	"github.com/logiport/logiport/internal/transaction/domain"
	"github.com/logiport/logiport/pkg/db"
	"github.com/logiport/logiport/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Numbering numberingdomain.Service
	Audit     auditdomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	numbering numberingdomain.Service
	audit     auditdomain.Service
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("transaction.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		numbering: p.Numbering,
		audit:     p.Audit,
		metrics:   p.Metrics,
	}
}

// Create inserts a new transaction. When no manual number is given, one is
// allocated and committed before the insert, so a failed insert burns the
// number rather than risking a duplicate.
func (s *Service) Create(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	status := req.Status
	if status == "" {
		status = domain.StatusDraft
	}
	if status != domain.StatusDraft && status != domain.StatusActive {
		return nil, domain.ErrInvalidStatus
	}
	if req.TransactionType != "" && !domain.ValidType(req.TransactionType) {
		return nil, domain.ErrInvalidType
	}

	transactionNo := strings.TrimSpace(req.TransactionNo)
	if transactionNo != "" {
		existing, err := s.repo.FindByNumber(ctx, s.db, transactionNo)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, domain.ErrDuplicateNumber
		}
	} else {
		allocated, err := s.numbering.NextTransactionNumber(ctx)
		if err != nil {
			return nil, err
		}
		transactionNo = allocated
	}

	now := s.clock.Now()
	transaction := domain.Transaction{
		ID:                s.genID.Generate(),
		TransactionNo:     transactionNo,
		Status:            status,
		TransactionType:   req.TransactionType,
		TransactionDate:   req.TransactionDate,
		ClientID:          req.ClientID,
		ExporterCompanyID: req.ExporterCompanyID,
		ImporterCompanyID: req.ImporterCompanyID,
		OriginCountryID:   req.OriginCountryID,
		DestCountryID:     req.DestCountryID,
		CurrencyID:        req.CurrencyID,
		Notes:             req.Notes,
		TotalAmount:       req.TotalAmount,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if actorID := actorIDFromContext(ctx); actorID != nil {
		transaction.CreatedBy = actorID
		transaction.UpdatedBy = actorID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &transaction)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateNumber
		}
		return nil, err
	}

	s.audit.RecordChange(ctx, "create", "transactions", int64(transaction.ID), nil, snapshot(&transaction))
	return &transaction, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Transaction, error) {
	transaction, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if transaction == nil {
		return nil, domain.ErrTransactionNotFound
	}
	return transaction, nil
}

// Update applies field changes to an unlocked transaction. The transaction
// number is immutable here, and the status only moves through ChangeStatus.
func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	var updated *domain.Transaction
	var before map[string]any

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transaction, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if transaction == nil {
			return domain.ErrTransactionNotFound
		}
		if transaction.Locked() {
			return domain.ErrTransactionLocked
		}
		before = snapshot(transaction)

		if req.TransactionType != nil {
			if !domain.ValidType(*req.TransactionType) {
				return domain.ErrInvalidType
			}
			transaction.TransactionType = *req.TransactionType
		}
		if req.TransactionDate != nil {
			transaction.TransactionDate = req.TransactionDate
		}
		if req.ClientID != nil {
			transaction.ClientID = req.ClientID
		}
		if req.ExporterCompanyID != nil {
			transaction.ExporterCompanyID = req.ExporterCompanyID
		}
		if req.ImporterCompanyID != nil {
			transaction.ImporterCompanyID = req.ImporterCompanyID
		}
		if req.OriginCountryID != nil {
			transaction.OriginCountryID = req.OriginCountryID
		}
		if req.DestCountryID != nil {
			transaction.DestCountryID = req.DestCountryID
		}
		if req.CurrencyID != nil {
			transaction.CurrencyID = req.CurrencyID
		}
		if req.Notes != nil {
			transaction.Notes = req.Notes
		}
		if req.TotalAmount != nil {
			transaction.TotalAmount = req.TotalAmount
		}

		transaction.UpdatedBy = actorIDFromContext(ctx)
		transaction.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, transaction); err != nil {
			return err
		}
		updated = transaction
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordChange(ctx, "update", "transactions", int64(updated.ID), before, snapshot(updated))
	return updated, nil
}

// Delete removes an unlocked transaction, then realigns the number counter so
// a deleted tail can be reissued. The realignment is best effort.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	var deleted *domain.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transaction, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if transaction == nil {
			return domain.ErrTransactionNotFound
		}
		if transaction.Locked() {
			return domain.ErrTransactionLocked
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		deleted = transaction
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, auditdomain.Entry{
		Action:     "delete",
		TableName:  "transactions",
		RecordID:   int64(deleted.ID),
		Details:    fmt.Sprintf("transaction_no=%s", deleted.TransactionNo),
		BeforeData: snapshot(deleted),
	})

	if _, err := s.numbering.SyncLastNumber(ctx); err != nil {
		s.log.Warn("counter sync after delete failed",
			zap.String("transaction_no", deleted.TransactionNo),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListTransactionRequest) (domain.ListTransactionResponse, error) {
	if req.Status != "" && !domain.ValidStatus(req.Status) {
		return domain.ListTransactionResponse{}, domain.ErrInvalidStatus
	}
	if req.TransactionType != "" && !domain.ValidType(req.TransactionType) {
		return domain.ListTransactionResponse{}, domain.ErrInvalidType
	}

	page := req.Pagination.Normalize()
	transactions, total, err := s.repo.List(ctx, s.db, domain.ListFilter{
		ClientID:        req.ClientID,
		Status:          req.Status,
		TransactionType: req.TransactionType,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Search:          req.Search,
		Offset:          page.Offset(),
		Limit:           page.Limit(),
	})
	if err != nil {
		return domain.ListTransactionResponse{}, err
	}

	return domain.ListTransactionResponse{
		PageInfo:     pagination.BuildPageInfo(page, total),
		Transactions: transactions,
	}, nil
}

// ChangeStatus moves a transaction through the lifecycle table. The check and
// the write happen against the stored status inside one store transaction, so
// concurrent transitions serialize instead of double-applying.
func (s *Service) ChangeStatus(ctx context.Context, id snowflake.ID, target domain.Status) (*domain.Transaction, error) {
	if !domain.ValidStatus(target) {
		return nil, domain.ErrInvalidStatus
	}

	var updated *domain.Transaction
	var previous domain.Status

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transaction, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if transaction == nil {
			return domain.ErrTransactionNotFound
		}
		if !domain.TransitionAllowed(transaction.Status, target) {
			return domain.ErrTransitionNotAllowed
		}

		previous = transaction.Status
		transaction.Status = target
		transaction.UpdatedBy = actorIDFromContext(ctx)
		transaction.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateLifecycle(ctx, tx, transaction); err != nil {
			return err
		}
		updated = transaction
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordStatusTransition(ctx, string(previous), string(target))
	s.audit.RecordChange(ctx,
		domain.TransitionAction(previous, target),
		"transactions",
		int64(updated.ID),
		map[string]any{"status": string(previous)},
		map[string]any{"status": string(target)},
	)
	return updated, nil
}

func (s *Service) Activate(ctx context.Context, id snowflake.ID) (*domain.Transaction, error) {
	return s.ChangeStatus(ctx, id, domain.StatusActive)
}

func (s *Service) Close(ctx context.Context, id snowflake.ID) (*domain.Transaction, error) {
	return s.ChangeStatus(ctx, id, domain.StatusClosed)
}

// Reopen moves a closed transaction back to active so it can be corrected.
func (s *Service) Reopen(ctx context.Context, id snowflake.ID) (*domain.Transaction, error) {
	return s.ChangeStatus(ctx, id, domain.StatusActive)
}

func (s *Service) Archive(ctx context.Context, id snowflake.ID) (*domain.Transaction, error) {
	return s.ChangeStatus(ctx, id, domain.StatusArchived)
}

func actorIDFromContext(ctx context.Context) *int64 {
	actor, ok := actorctx.ActorFromContext(ctx)
	if !ok || actor.ID == 0 {
		return nil
	}
	id := int64(actor.ID)
	return &id
}

func snapshot(t *domain.Transaction) map[string]any {
	if t == nil {
		return nil
	}
	data := map[string]any{
		"transaction_no":   t.TransactionNo,
		"status":           string(t.Status),
		"transaction_type": string(t.TransactionType),
	}
	if t.TransactionDate != nil {
		data["transaction_date"] = t.TransactionDate.UTC().Format("2006-01-02")
	}
	if t.ClientID != nil {
		data["client_id"] = *t.ClientID
	}
	if t.ExporterCompanyID != nil {
		data["exporter_company_id"] = *t.ExporterCompanyID
	}
	if t.ImporterCompanyID != nil {
		data["importer_company_id"] = *t.ImporterCompanyID
	}
	if t.OriginCountryID != nil {
		data["origin_country_id"] = *t.OriginCountryID
	}
	if t.DestCountryID != nil {
		data["dest_country_id"] = *t.DestCountryID
	}
	if t.CurrencyID != nil {
		data["currency_id"] = *t.CurrencyID
	}
	if t.Notes != nil {
		data["notes"] = *t.Notes
	}
	if t.TotalAmount != nil {
		data["total_amount"] = *t.TotalAmount
	}
	return data
}
