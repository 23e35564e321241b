package cli

import (
	"context"

	"go.uber.org/zap"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/config"
	"subquestion-challenge-service/internal/infra/memory"
	"subquestion-challenge-service/internal/infra/sqldb"
)

// DriverMemory keeps everything in process; state is lost on restart.
const DriverMemory = "memory"

// openStore returns the transactional store for the configured driver, migrated and ready.
// The returned close function releases the database handle.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (app.Store, func(), error) {
	if cfg.Database.Driver == DriverMemory {
		log.Warn("using in-memory store, data is not persisted")
		return memory.NewStore(), func() {}, nil
	}
	db, err := sqldb.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrateWith(ctx, db, cfg, log); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return sqldb.NewStore(db), func() { _ = db.Close() }, nil
}
