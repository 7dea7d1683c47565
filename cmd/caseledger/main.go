package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/caseledger/caseledger/internal/actors"
	"github.com/caseledger/caseledger/internal/app"
	"github.com/caseledger/caseledger/internal/auth"
	"github.com/caseledger/caseledger/internal/observability"
	"github.com/caseledger/caseledger/internal/platform/cache"
	"github.com/caseledger/caseledger/internal/records"
	recordhttp "github.com/caseledger/caseledger/internal/records/http"
	"github.com/caseledger/caseledger/internal/reporting"
	reporthttp "github.com/caseledger/caseledger/internal/reporting/http"
	"github.com/caseledger/caseledger/internal/shared"
	"github.com/caseledger/caseledger/jobs"
)

const idempotencyTTL = 24 * time.Hour

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	directory, err := app.LoadDirectory(cfg)
	if err != nil {
		logger.Error("load directory", slog.Any("error", err))
		os.Exit(1)
	}

	backend, err := app.OpenBackend(ctx, cfg, directory, redisClient, logger)
	if err != nil {
		logger.Error("open record store", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()
	backend.Cache.ListenForInvalidation(ctx)

	sessionManager := shared.NewSessionManager(redisClient, "caseledger_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(logger, backend.Pool)
	idempotencyStore := shared.NewIdempotencyStore(redisClient, idempotencyTTL)

	repo := backend.Repository
	loader := records.NewLoader(repo, logger)
	reportService := reporting.NewService(loader, logger)

	authService := auth.NewService(directory, repo.Actors, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, auditLogger)

	recordsHandler := recordhttp.NewHandler(logger, loader, auditLogger, idempotencyStore)
	reportsHandler := reporthttp.NewHandler(logger, reportService, auditLogger)
	actorsHandler := actors.NewHandler(logger, actors.NewService(repo, auditLogger, logger))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		RecordsHandler: recordsHandler,
		ReportsHandler: reportsHandler,
		ActorsHandler:  actorsHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("record_store", cfg.RecordStore))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
