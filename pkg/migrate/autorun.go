package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/repricer-backend/pkg/config"
	"github.com/angelmondragon/repricer-backend/pkg/db"
	"github.com/angelmondragon/repricer-backend/pkg/logger"
)

func shouldAutoRun(cfg *config.Config) bool {
	return cfg != nil && cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate && !cfg.FeatureFlags.UseSQLite
}

// MaybeRunDev brings the schema up to date on boot when running locally with auto-migrate
// enabled. SQLite test databases build their own schema and are left alone.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !shouldAutoRun(cfg) {
		return nil
	}
	if client == nil {
		return fmt.Errorf("auto-migrate: db client required")
	}
	// goose is pinned to the postgres dialect.
	if client.Driver() != db.DriverPostgres {
		logg.Warn(logg.WithField(ctx, "driver", client.Driver()), "auto-migrate: skipped for non-postgres driver")
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "migrations_dir": DefaultDir})
	logg.Info(ctx, "auto-migrate: applying pending migrations")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	logg.Info(ctx, "auto-migrate: schema up to date")
	return nil
}
