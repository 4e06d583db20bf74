package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudtrack/certprep/internal/catalog"
	"github.com/cloudtrack/certprep/internal/config"
	"github.com/cloudtrack/certprep/internal/database"
	"github.com/cloudtrack/certprep/internal/handler"
	"github.com/cloudtrack/certprep/internal/logger"
	"github.com/cloudtrack/certprep/internal/middleware"
	"github.com/cloudtrack/certprep/internal/repository"
	"github.com/cloudtrack/certprep/internal/router"
	"github.com/cloudtrack/certprep/internal/scheduler"
	"github.com/cloudtrack/certprep/internal/service"
	"github.com/cloudtrack/certprep/internal/validator"
	"github.com/cloudtrack/certprep/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("question_source", string(cfg.QuestionSource)).
		Msg("Starting certprep server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Load Exam Catalog ─────────────────────────────────────────────
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Failed to load exam catalog")
	}
	log.Info().
		Int("exams", len(cat.Exams)).
		Int("questions", len(cat.Questions)).
		Msg("Exam catalog loaded")

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(rdb, cfg.SessionTTL)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	var questionSource service.QuestionSource
	switch cfg.QuestionSource {
	case config.QuestionSourceCatalog:
		questionSource = service.NewCatalogQuestionSource(cat)
	default:
		questionSource = service.NewPostgresQuestionSource(questionRepo)
	}

	sessionEvents := service.NewRedisSessionEvents(rdb)
	authProvider := service.NewJWTAuthProvider(cfg, userRepo, service.NewRedisLoginStore(rdb))
	catalogService := service.NewCatalogService(cat)
	importQueue := worker.NewRedisQueue(rdb)
	questionService := service.NewQuestionService(questionSource, importQueue)
	sessionService := service.NewExamSessionService(catalogService, questionSource, sessionRepo, sessionEvents, logger.Component(log, "exam_session_service"))
	dashboardService := service.NewDashboardService(dashboardRepo, sessionRepo, questionService, catalogService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authProvider, log),
		Exam:     handler.NewExamHandler(catalogService),
		Session:  handler.NewSessionHandler(sessionService, log),
		Question: handler.NewQuestionHandler(questionService, log),
		WS:       handler.NewWSHandler(sessionService, scheduler.NewTicker(), log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(map[string]handler.Pinger{
			"postgres": handler.PingFunc(pool.Ping),
			"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		}, log),
		Dashboard: handler.NewDashboardHandler(dashboardService, log),
		Monitor:   handler.NewMonitorHandler(sessionEvents, dashboardService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	importWorker := worker.NewQuestionImportWorker(importQueue, questionRepo, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		importWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	authLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMin, time.Minute)
	r := router.SetupRouter(authProvider, authLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the import worker and wait for its last batch.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
