package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// User is an operator account. PasswordHash is an encoded Argon2id string and
// never leaves the service layer.
type User struct {
	ID           snowflake.ID `gorm:"column:id;primaryKey" json:"id"`
	Username     string       `gorm:"column:username;uniqueIndex;size:64" json:"username"`
	PasswordHash string       `gorm:"column:password_hash" json:"-"`
	FullName     *string      `gorm:"column:full_name" json:"full_name,omitempty"`
	Role         Role         `gorm:"column:role" json:"role"`
	IsActive     bool         `gorm:"column:is_active" json:"is_active"`
	CreatedAt    time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func ValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}
