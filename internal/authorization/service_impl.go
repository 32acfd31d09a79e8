package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/logiport/logiport/internal/actorctx"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectTransaction = "transaction"
	ObjectCounter     = "counter"
	ObjectDocGroup    = "doc_group"
	ObjectAuditLog    = "audit_log"
	ObjectUser        = "user"
)

const (
	ActionTransactionView     = "transaction.view"
	ActionTransactionCreate   = "transaction.create"
	ActionTransactionUpdate   = "transaction.update"
	ActionTransactionDelete   = "transaction.delete"
	ActionTransactionActivate = "transaction.activate"
	ActionTransactionClose    = "transaction.close"
	ActionTransactionReopen   = "transaction.reopen"
	ActionTransactionArchive  = "transaction.archive"

	ActionCounterView = "counter.view"
	ActionCounterSet  = "counter.set"
	ActionCounterSync = "counter.sync"

	ActionDocGroupView   = "doc_group.view"
	ActionDocGroupCreate = "doc_group.create"

	ActionAuditLogView = "audit_log.view"

	ActionUserView   = "user.view"
	ActionUserCreate = "user.create"
	ActionUserUpdate = "user.update"
	ActionUserDelete = "user.delete"
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, object, action string) error {
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := "role:system"
	if actor, ok := actorctx.ActorFromContext(ctx); ok {
		role := strings.ToLower(strings.TrimSpace(actor.Role))
		if role == "" {
			role = "viewer"
		}
		subject = "role:" + role
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, subject, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) auditDenied(ctx context.Context, subject, object, action string) {
	if s.auditSvc == nil {
		return
	}
	s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:    "authorization.denied",
		TableName: "authorization",
		Details:   "subject=" + subject + " object=" + object + " action=" + action,
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Viewers read everything except the audit trail and accounts.
		{"role:viewer", ObjectTransaction, ActionTransactionView},
		{"role:viewer", ObjectCounter, ActionCounterView},
		{"role:viewer", ObjectDocGroup, ActionDocGroupView},

		// Operators run the day-to-day document flow.
		{"role:operator", ObjectTransaction, ActionTransactionCreate},
		{"role:operator", ObjectTransaction, ActionTransactionUpdate},
		{"role:operator", ObjectTransaction, ActionTransactionActivate},
		{"role:operator", ObjectTransaction, ActionTransactionClose},
		{"role:operator", ObjectTransaction, ActionTransactionReopen},
		{"role:operator", ObjectDocGroup, ActionDocGroupCreate},

		// Admins additionally manage counters, accounts, and destructive ops.
		{"role:admin", ObjectTransaction, ActionTransactionDelete},
		{"role:admin", ObjectTransaction, ActionTransactionArchive},
		{"role:admin", ObjectCounter, ActionCounterSet},
		{"role:admin", ObjectCounter, ActionCounterSync},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},
		{"role:admin", ObjectUser, ActionUserView},
		{"role:admin", ObjectUser, ActionUserCreate},
		{"role:admin", ObjectUser, ActionUserUpdate},
		{"role:admin", ObjectUser, ActionUserDelete},
	}

	groupings := [][]string{
		{"role:operator", "role:viewer"},
		{"role:admin", "role:operator"},
		{"role:system", "role:admin"},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	for _, grouping := range groupings {
		if _, err := enforcer.AddGroupingPolicy(grouping[0], grouping[1]); err != nil {
			return err
		}
	}
	return nil
}
