package migration

import (
	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/config"
	docgroupdomain "github.com/logiport/logiport/internal/docgroup/domain"
	numberingdomain "github.com/logiport/logiport/internal/numbering/domain"
	"github.com/logiport/logiport/internal/seed"
	transactiondomain "github.com/logiport/logiport/internal/transaction/domain"
	userdomain "github.com/logiport/logiport/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := conn.AutoMigrate(
				&numberingdomain.Counter{},
				&transactiondomain.Transaction{},
				&docgroupdomain.DocGroup{},
				&auditdomain.AuditLog{},
				&userdomain.User{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureAdminUser(conn)
	}),
)
