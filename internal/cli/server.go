package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/auth"
	"subquestion-challenge-service/internal/config"
	"subquestion-challenge-service/internal/flags"
	"subquestion-challenge-service/internal/infra/memory"
	"subquestion-challenge-service/internal/infra/postgres"
	rediscache "subquestion-challenge-service/internal/infra/redis"
	"subquestion-challenge-service/internal/infra/sqldb"
	"subquestion-challenge-service/internal/logger"
	"subquestion-challenge-service/internal/metrics"
	transport "subquestion-challenge-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Migrate the database and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth secret not configured")
	}
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// The report and the question reads go through pgx when the database is postgres.
	var (
		loader app.QuestionLoader = store
		source app.ReportSource   = store
	)
	if cfg.Database.Driver == sqldb.DriverPostgres {
		pool, err := postgres.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		reader := postgres.NewReader(pool)
		loader, source = reader, reader
	}

	hub := app.NewProgressHub()
	var (
		cache     app.QuestionCache
		publisher app.ProgressPublisher = hub
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		cache = rediscache.NewQuestionCache(client, loader, cfg.CacheTTL(), log)
		relay := rediscache.NewProgressRelay(client, hub, log)
		publisher = relay
		go func() {
			if err := relay.Run(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("progress relay stopped", zap.Error(err))
			}
		}()
	} else {
		cache = memory.NewQuestionCache(loader, cfg.CacheTTL())
	}

	m := metrics.New()
	svc := app.NewSubQuestionService(store, flags.NewRegistry(),
		app.WithQuestionCache(cache),
		app.WithProgressPublisher(publisher),
		app.WithLogger(log.Named("subquestion")),
		app.WithMetrics(m),
	)
	registry := app.NewRegistry()
	if err := app.Register(registry, svc); err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.Deps{
			Dispatcher:  app.NewDispatcher(registry, store),
			Reporter:    app.NewReporter(store, source, log.Named("report")),
			Hub:         hub,
			Auth:        auth.NewAuthenticator(cfg.Auth.Secret, cfg.TokenTTL()),
			Metrics:     m,
			Log:         log.Named("http"),
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting subquestion service", zap.String("addr", server.Addr), zap.String("driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
