package migration

import (
	"github.com/hireloop/paycore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func run(cfg config.Config, gdb *gorm.DB, log *zap.Logger) error {
	if cfg.DBType != "postgres" {
		log.Warn("skipping migrations for non-postgres database", zap.String("type", cfg.DBType))
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

var Module = fx.Module("migration",
	fx.Invoke(run),
)
