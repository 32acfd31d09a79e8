package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/logiport/logiport/internal/actorctx"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/audit/masking"
	"github.com/logiport/logiport/internal/clock"
	obsmetrics "github.com/logiport/logiport/internal/observability/metrics"
	"github.com/logiport/logiport/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    auditdomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    auditdomain.Repository
	metrics *obsmetrics.Metrics
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Record appends one audit entry. It never returns an error: a failed write
// is logged and counted, and the operation being audited proceeds unharmed.
func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		s.log.Warn("audit entry dropped", zap.Error(auditdomain.ErrInvalidAction))
		return
	}

	tableName := strings.TrimSpace(entry.TableName)
	if tableName == "" {
		tableName = "unknown"
	}

	record := auditdomain.AuditLog{
		ID:        s.genID.Generate(),
		Action:    action,
		TableName: tableName,
		Timestamp: s.clock.Now(),
	}
	if actor, ok := actorctx.ActorFromContext(ctx); ok {
		userID := int64(actor.ID)
		record.UserID = &userID
	}
	if entry.RecordID != 0 {
		recordID := entry.RecordID
		record.RecordID = &recordID
	}
	if details := strings.TrimSpace(entry.Details); details != "" {
		record.Details = &details
	}

	var err error
	if record.BeforeData, err = marshalSnapshot(entry.BeforeData); err != nil {
		s.log.Warn("audit before snapshot dropped", zap.String("action", action), zap.Error(err))
	}
	if record.AfterData, err = marshalSnapshot(entry.AfterData); err != nil {
		s.log.Warn("audit after snapshot dropped", zap.String("action", action), zap.Error(err))
	}

	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("table", tableName),
			zap.Error(err),
		)
		s.metrics.RecordAuditWriteFailure(ctx, action)
		return
	}
	s.metrics.RecordAuditWrite(ctx, action)
}

// RecordChange appends an entry carrying before/after snapshots of a row.
func (s *Service) RecordChange(ctx context.Context, action, tableName string, recordID int64, before, after map[string]any) {
	s.Record(ctx, auditdomain.Entry{
		Action:     action,
		TableName:  tableName,
		RecordID:   recordID,
		BeforeData: before,
		AfterData:  after,
	})
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	page := req.Pagination.Normalize()

	logs, total, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		UserID:    req.UserID,
		Action:    req.Action,
		TableName: req.TableName,
		RecordID:  req.RecordID,
		Search:    req.Search,
		StartAt:   req.StartAt,
		EndAt:     req.EndAt,
		Offset:    page.Offset(),
		Limit:     page.Limit(),
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	return auditdomain.ListAuditLogResponse{
		PageInfo:  pagination.BuildPageInfo(page, total),
		AuditLogs: logs,
	}, nil
}

func marshalSnapshot(data map[string]any) (datatypes.JSON, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(masking.Snapshot(data))
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
