package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"subquestion-challenge-service/internal/config"
	"subquestion-challenge-service/internal/infra/sqldb"
	"subquestion-challenge-service/internal/logger"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver == DriverMemory {
		log.Info("in-memory store has no migrations")
		return nil
	}
	db, err := sqldb.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrateWith(ctx, db, cfg, log)
}

func migrateWith(ctx context.Context, db *bun.DB, cfg config.Config, log *zap.Logger) error {
	applied, err := sqldb.Migrate(ctx, db)
	if err != nil {
		return err
	}
	log.Info("migrations applied",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("migrations", applied))
	return nil
}
