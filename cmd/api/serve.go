package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/pattern-analyzer/internal/application"
	appai "github.com/bryanwahyu/pattern-analyzer/internal/application/ai"
	appanalysis "github.com/bryanwahyu/pattern-analyzer/internal/application/analysis"
	"github.com/bryanwahyu/pattern-analyzer/internal/application/stream"
	"github.com/bryanwahyu/pattern-analyzer/internal/auth"
	"github.com/bryanwahyu/pattern-analyzer/internal/config"
	"github.com/bryanwahyu/pattern-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/ai/openai"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/ai/prompt"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/cache"
	mysqlp "github.com/bryanwahyu/pattern-analyzer/internal/infra/db/mysql"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/db/postgres"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/db/sqlite"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/detector"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/httpserver"
	"github.com/bryanwahyu/pattern-analyzer/internal/infra/storage"
	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
	"github.com/bryanwahyu/pattern-analyzer/internal/middleware"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

type historyStore interface {
	analysis.HistoryRepository
	Migrate(ctx context.Context) error
}

type fileStore interface {
	analysis.ResultFileStore
	middleware.HealthChecker
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, repo, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	files, err := openFiles(ctx, cfg)
	if err != nil {
		return err
	}

	results := cache.NewResultCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	janitor, err := cache.NewJanitor(results, cfg.Cache.Sweep)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop(context.Background())

	det, err := newDetector(cfg)
	if err != nil {
		return err
	}

	var insights *appai.Service
	if cfg.AI.Enabled {
		insights = appai.NewService(
			openai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL),
			prompt.Fallback,
			appai.Options{
				Timeout:          cfg.AI.Timeout,
				FailureThreshold: cfg.AI.FailureThreshold,
				OpenTimeout:      cfg.AI.OpenTimeout,
			},
		)
		logging.Info().Str("model", cfg.AI.Model).Msg("insight explainer enabled")
	}

	tokens, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	// init service
	svc := &appanalysis.Service{
		Detector: det,
		Cache:    results,
		Repo:     repo,
		Files:    files,
		Insights: insights,
		Clock:    application.SystemClock{},
	}

	handler := httpserver.NewRouter(httpserver.Deps{
		Analysis: svc,
		Stream: stream.NewGenerator(stream.Options{
			Interval:    cfg.Stream.Interval,
			AnomalyRate: cfg.Stream.AnomalyRate,
		}),
		Verifier: tokens,
		Checkers: map[string]middleware.HealthChecker{
			"database": &middleware.PingChecker{DB: db},
			"storage":  files,
		},
	}, httpserver.Options{
		CORSOrigins:       cfg.Server.CORSOrigins,
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
		RateLimitRequests: cfg.Server.RateLimit.Requests,
		RateLimitWindow:   cfg.Server.RateLimit.Window,
		StreamAuth:        middleware.Policy(cfg.Stream.Auth),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	// WriteTimeout 0: analisa besar dan websocket tidak boleh diputus
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).
			Str("db", cfg.Database.Driver).
			Str("storage", cfg.Storage.Driver).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// graceful shutdown
	logging.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("shutdown error")
	}
	return nil
}

func openHistory(ctx context.Context, cfg *config.Config) (*sql.DB, historyStore, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		return db, mysqlp.NewHistoryRepository(db), nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		return db, postgres.NewHistoryRepository(db), nil
	default:
		db, err := sqlite.Connect(ctx, cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open: %w", err)
		}
		return db, sqlite.NewHistoryRepository(db), nil
	}
}

func openFiles(ctx context.Context, cfg *config.Config) (fileStore, error) {
	if cfg.Storage.Driver == "minio" {
		store, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("minio init: %w", err)
		}
		return store, nil
	}
	return storage.NewLocal(cfg.Storage.Dir)
}

func detectorConfig(cfg *config.Config) detector.Config {
	d := cfg.Detector
	return detector.Config{
		Trees:         d.Trees,
		SampleSize:    d.SampleSize,
		Contamination: d.Contamination,
		MinThreshold:  d.MinThreshold,
		Seed:          d.Seed,
		MinRows:       d.MinRows,
		ZThreshold:    d.ZThreshold,
		MaxReasons:    d.MaxReasons,
	}
}

func newDetector(cfg *config.Config) (*detector.Detector, error) {
	det := detector.New(detectorConfig(cfg))
	if cfg.Detector.ModelPath == "" {
		return det, nil
	}

	f, err := os.Open(cfg.Detector.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	m, err := detector.LoadModel(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.Detector.ModelPath, err)
	}
	det.UseModel(m)
	logging.Info().Str("path", cfg.Detector.ModelPath).Strs("features", m.Features).Msg("pre-trained model loaded")
	return det, nil
}
