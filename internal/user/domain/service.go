package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/logiport/logiport/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
	Role     Role    `json:"role"`
}

type UpdateUserRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Password *string `json:"password,omitempty"`
}

type ListUserRequest struct {
	pagination.Pagination
	Role   Role
	Active *bool
	Search string
}

type ListUserResponse struct {
	pagination.PageInfo
	Users []User `json:"users"`
}

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	Get(ctx context.Context, id snowflake.ID) (*User, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateUserRequest) (*User, error)
	Delete(ctx context.Context, id snowflake.ID) error
	List(ctx context.Context, req ListUserRequest) (ListUserResponse, error)
	// Authenticate verifies credentials and returns the active account.
	Authenticate(ctx context.Context, username, password string) (*User, error)
}

type ListFilter struct {
	Role   Role
	Active *bool
	Search string
	Offset int
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error)
	Update(ctx context.Context, tx *gorm.DB, user *User) error
	Delete(ctx context.Context, tx *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]User, int64, error)
}

var (
	ErrUserNotFound       = errors.New("user_not_found")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidUsername    = errors.New("invalid_username")
	ErrInvalidPassword    = errors.New("invalid_password")
	ErrInvalidRole        = errors.New("invalid_role")
)
