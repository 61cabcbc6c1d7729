package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/bryanwahyu/policy-analysis/internal/application"
	appai "github.com/bryanwahyu/policy-analysis/internal/application/ai"
	appjobs "github.com/bryanwahyu/policy-analysis/internal/application/jobs"
	"github.com/bryanwahyu/policy-analysis/internal/config"
	domai "github.com/bryanwahyu/policy-analysis/internal/domain/ai"
	"github.com/bryanwahyu/policy-analysis/internal/domain/jobs"
	"github.com/bryanwahyu/policy-analysis/internal/infra/ai/claude"
	aiopenai "github.com/bryanwahyu/policy-analysis/internal/infra/ai/openai"
	"github.com/bryanwahyu/policy-analysis/internal/infra/callback"
	mysqlp "github.com/bryanwahyu/policy-analysis/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/policy-analysis/internal/infra/db/postgres"
	"github.com/bryanwahyu/policy-analysis/internal/infra/extract"
	"github.com/bryanwahyu/policy-analysis/internal/infra/httpserver"
	"github.com/bryanwahyu/policy-analysis/internal/infra/render"
	"github.com/bryanwahyu/policy-analysis/internal/infra/status"
	minioStore "github.com/bryanwahyu/policy-analysis/internal/infra/storage"
	"github.com/bryanwahyu/policy-analysis/internal/logging"
	"github.com/bryanwahyu/policy-analysis/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level)
	ctx := context.Background()

	for _, dir := range []string{cfg.Storage.TempDir, cfg.Storage.ReportsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("Failed to create directory")
		}
	}

	store := status.NewMemoryStore(cfg.Status.MaxJobs, cfg.Status.TTL, logger)
	extractor := extract.New(cfg.Storage.TempDir, cfg.Storage.DownloadTimeout, logger)
	analyzer := appai.NewService(newAIClient(cfg, logger), cfg.AI.MaxTokens, logger)

	var uploader render.Uploader
	if cfg.Minio.Enabled {
		s, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("MinIO init failed")
		}
		uploader = s
	}
	renderer := render.New(cfg.Storage.ReportsDir, cfg.Report.Company, uploader, logger)

	health := map[string]middleware.HealthChecker{}

	var results jobs.ResultStore
	if cfg.DatabaseEnabled() {
		db, repo, err := openResults(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("Database connect failed")
		}
		defer db.Close()
		results = repo
		health["database"] = &middleware.DatabaseHealthChecker{DB: db}
	} else {
		logger.Warn().Msg("No database configured, analysis results will not be persisted")
	}

	metrics := middleware.NewMetrics()
	svc := &appjobs.Service{
		Status:    store,
		Extractor: extractor,
		Analyzer:  analyzer,
		Renderer:  renderer,
		Results:   results,
		Notifier:  callback.New(cfg.Callback.Timeout, logger),
		Observer:  metrics,
		Clock:     application.SystemClock{},
		Logger:    logger,
		NewID:     jobs.NewID,
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)

	sched := cron.New()
	if _, err := sched.AddFunc("@every "+cfg.Status.SweepEvery.String(), func() {
		now := time.Now().UTC()
		removed := store.Sweep(now)
		idle := limiter.Cleanup(10 * time.Minute)
		uploads, err := httpserver.SweepUploads(cfg.Storage.TempDir, now.Add(-cfg.Status.TTL))
		if err != nil {
			logger.Warn().Err(err).Str("dir", cfg.Storage.TempDir).Msg("Upload sweep incomplete")
		}
		logger.Debug().
			Int("jobs_removed", removed).
			Int("limiters_removed", idle).
			Int("uploads_removed", uploads).
			Int("jobs_tracked", store.Len()).
			Msg("Sweep finished")
	}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule sweep")
	}
	sched.Start()

	handler := httpserver.NewRouter(httpserver.Deps{
		Jobs:    svc,
		Metrics: metrics,
		Limiter: limiter,
		Health:  health,
		Logger:  logger,
	}, httpserver.Options{
		Environment:        cfg.Environment,
		TempDir:            cfg.Storage.TempDir,
		ReportsDir:         cfg.Storage.ReportsDir,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		BlockPrivateURLs:   cfg.Server.BlockPrivateURLs,
		CORSOrigins:        cfg.Server.CORSOrigins,
		APIKeys:            cfg.Server.APIKeys,
		AnalyzerConfigured: analyzer.Configured,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", addr).
			Str("environment", cfg.Environment).
			Str("ai_provider", cfg.AI.Provider).
			Bool("analyzer_configured", analyzer.Configured()).
			Bool("persistence", results != nil).
			Bool("report_upload", uploader != nil).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("Shutting down server")

	<-sched.Stop().Done()
	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
	}
}

// newAIClient returns nil when the provider has no API key, which leaves the
// service running with analysis reported as not configured.
func newAIClient(cfg *config.Config, logger arbor.ILogger) domai.Client {
	key := cfg.AIKey()
	if key == "" {
		logger.Warn().Str("provider", cfg.AI.Provider).Msg("No AI API key configured, analyses will fail")
		return nil
	}
	if cfg.AI.Provider == "openai" {
		return aiopenai.NewClient(key, cfg.AI.Model, cfg.AI.Timeout)
	}
	return claude.NewClient(key, cfg.AI.Model, cfg.AI.Timeout)
}

func openResults(ctx context.Context, cfg *config.Config) (*sql.DB, jobs.ResultStore, error) {
	if cfg.Database.Driver == "postgres" {
		db, err := pgp.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		return db, pgp.NewResultRepository(db), nil
	}
	db, err := mysqlp.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	return db, mysqlp.NewResultRepository(db), nil
}
