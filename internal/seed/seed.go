package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/logiport/logiport/internal/user/domain"
	"github.com/logiport/logiport/internal/user/password"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "Administrator"
)

// EnsureAdminUser seeds the default admin account for first startup, so a
// fresh install is usable before anyone can create accounts.
func EnsureAdminUser(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Model(&userdomain.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		hashed, err := password.Hash(defaultAdminPassword)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		fullName := defaultAdminDisplay
		admin := userdomain.User{
			ID:           node.Generate(),
			Username:     defaultAdminUsername,
			PasswordHash: hashed,
			FullName:     &fullName,
			Role:         userdomain.RoleAdmin,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.WithContext(ctx).Create(&admin).Error
	})
}
