package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/clock"
	obsmetrics "github.com/logiport/logiport/internal/observability/metrics"
	"github.com/logiport/logiport/internal/user/domain"
	"github.com/logiport/logiport/internal/user/password"
	"github.com/logiport/logiport/pkg/db"
	"github.com/logiport/logiport/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Audit   auditdomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	audit auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, domain.ErrInvalidUsername
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidPassword
	}
	role := req.Role
	if role == "" {
		role = domain.RoleOperator
	}
	if !domain.ValidRole(role) {
		return nil, domain.ErrInvalidRole
	}

	existing, err := s.repo.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrUsernameTaken
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate(),
		Username:     username,
		PasswordHash: hashed,
		FullName:     req.FullName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &user)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, err
	}

	s.audit.RecordChange(ctx, "create", "users", int64(user.ID), nil, snapshot(&user))
	return &user, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateUserRequest) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	before := snapshot(user)

	if req.FullName != nil {
		user.FullName = req.FullName
	}
	if req.Role != nil {
		if !domain.ValidRole(*req.Role) {
			return nil, domain.ErrInvalidRole
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != nil {
		if strings.TrimSpace(*req.Password) == "" {
			return nil, domain.ErrInvalidPassword
		}
		hashed, err := password.Hash(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hashed
	}
	user.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Update(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordChange(ctx, "update", "users", int64(user.ID), before, snapshot(user))
	return user, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, auditdomain.Entry{
		Action:     "delete",
		TableName:  "users",
		RecordID:   int64(user.ID),
		Details:    "username=" + user.Username,
		BeforeData: snapshot(user),
	})
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListUserRequest) (domain.ListUserResponse, error) {
	if req.Role != "" && !domain.ValidRole(req.Role) {
		return domain.ListUserResponse{}, domain.ErrInvalidRole
	}

	page := req.Pagination.Normalize()
	users, total, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Role:   req.Role,
		Active: req.Active,
		Search: req.Search,
		Offset: page.Offset(),
		Limit:  page.Limit(),
	})
	if err != nil {
		return domain.ListUserResponse{}, err
	}

	return domain.ListUserResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Users:    users,
	}, nil
}

// Authenticate verifies credentials against the stored hash. Disabled
// accounts fail the same way wrong passwords do.
func (s *Service) Authenticate(ctx context.Context, username, pass string) (*domain.User, error) {
	user, err := s.repo.FindByUsername(ctx, s.db, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(pass, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// snapshot keeps credentials out of audit payloads by construction; the
// masking layer is a second line of defense.
func snapshot(u *domain.User) map[string]any {
	if u == nil {
		return nil
	}
	data := map[string]any{
		"username":  u.Username,
		"role":      string(u.Role),
		"is_active": u.IsActive,
	}
	if u.FullName != nil {
		data["full_name"] = *u.FullName
	}
	return data
}
