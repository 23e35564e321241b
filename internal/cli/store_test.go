package cli

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"subquestion-challenge-service/internal/config"
	"subquestion-challenge-service/internal/infra/memory"
	"subquestion-challenge-service/internal/infra/sqldb"
)

func TestOpenStoreSelectsDriver(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	var cfg config.Config
	cfg.Database.Driver = DriverMemory
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	defer closeStore()
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	cfg.Database.Driver = sqldb.DriverSQLite
	cfg.Database.DSN = "file:cli_open_store?mode=memory&cache=shared"
	store, closeSQL, err := openStore(ctx, cfg, log)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer closeSQL()
	if _, ok := store.(*sqldb.Store); !ok {
		t.Fatalf("expected sql store, got %T", store)
	}
	// migrations ran, so the question table exists
	qs, err := store.LoadQuestions(ctx, 1)
	if err != nil || len(qs) != 0 {
		t.Fatalf("load questions on fresh store: %v %v", qs, err)
	}

	cfg.Database.Driver = "oracle"
	if _, _, err := openStore(ctx, cfg, log); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}
}
