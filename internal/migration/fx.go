package migration

import (
	"github.com/ledgerline/dunning/internal/config"
	customerdomain "github.com/ledgerline/dunning/internal/customer/domain"
	employeedomain "github.com/ledgerline/dunning/internal/employee/domain"
	invoicedomain "github.com/ledgerline/dunning/internal/invoice/domain"
	"github.com/ledgerline/dunning/internal/seed"
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
			// SQLite and MySQL are dev conveniences; versioned migrations
			// only target Postgres.
			if err := conn.AutoMigrate(
				&customerdomain.Customer{},
				&employeedomain.Employee{},
				&invoicedomain.Invoice{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDemo {
			return seed.EnsureDemoData(conn)
		}
		return nil
	}),
)
