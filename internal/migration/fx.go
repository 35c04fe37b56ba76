package migration

import (
	"strings"

	"github.com/smallbiznis/referral/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		// SQL migrations target postgres; other dialects (sqlite in tests)
		// migrate via AutoMigrate at the call site.
		if !strings.EqualFold(cfg.DBType, "postgres") {
			log.Info("skipping migrations", zap.String("db_type", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
