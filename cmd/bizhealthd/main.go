// Command bizhealthd is the bizhealth scoring service.
// It serves the REST API on one listener and Prometheus metrics on another.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bizhealth/bizhealth/internal/api"
	"github.com/bizhealth/bizhealth/internal/history"
	"github.com/bizhealth/bizhealth/internal/ingestion"
	"github.com/bizhealth/bizhealth/internal/logging"
	"github.com/bizhealth/bizhealth/internal/metrics"
	"github.com/bizhealth/bizhealth/internal/platform"
	"github.com/bizhealth/bizhealth/internal/webhook"
	"github.com/bizhealth/bizhealth/pkg/clienthealth"
	"github.com/bizhealth/bizhealth/pkg/config"
	"github.com/bizhealth/bizhealth/pkg/scoring"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("BIZHEALTH_CONFIG"), "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bizhealthd: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bizhealthd: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("bizhealthd exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Server.DatabaseURL == "" {
		return errors.New("server.database_url is required (BIZHEALTH_SERVER__DATABASE_URL)")
	}

	db, err := sql.Open("postgres", cfg.Server.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database %s: %w", logging.RedactDSN(cfg.Server.DatabaseURL), err)
	}
	if err := platform.AutoMigrate(db); err != nil {
		return err
	}
	if v, dirty, err := platform.SchemaVersion(db); err == nil {
		logger.Info("database ready",
			logging.FieldDSN("database", cfg.Server.DatabaseURL),
			zap.Uint("schema_version", v),
			zap.Bool("dirty", dirty),
		)
	}

	archive, err := ingestion.NewArchive(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	rec := metrics.New()
	historySvc := history.NewService(db)
	engine := scoring.NewEngine(nil, scoring.DefaultScorers(cfg.Thresholds())...)
	ingestionSvc := ingestion.NewService(engine, archive, historySvc, rec, logger)

	var hook http.Handler
	if cfg.Server.WebhookSecret != "" {
		hook = webhook.NewHandler([]byte(cfg.Server.WebhookSecret), ingestionSvc, logger)
	}

	handler := api.NewHandler(api.Deps{
		Reports:     ingestionSvc,
		History:     historySvc,
		Clients:     clienthealth.New(cfg.Rules(), nil),
		Cache:       api.NewReportCache(cfg.Server.CacheSize),
		Metrics:     rec,
		Logger:      logger,
		Concurrency: cfg.Server.Concurrency,
		APIKey:      cfg.Server.APIKey,
		Health:      historySvc,
		Webhook:     hook,
	})

	servers := []*http.Server{{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", rec.Handler())
		servers = append(servers, &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}
	if cfg.Server.APIKey == "" {
		logger.Warn("no api key configured; write endpoints are open")
	} else {
		logger.Info("write endpoints require an api key", logging.FieldSecret("api_key"))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Backend))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
