package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/store"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Proctor")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		st      store.Store
		feed    service.Feed
		queue   handler.QueueDepther
		monitor *handler.MonitorHandler
		checks  = map[string]handler.Check{}
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		// ─── In-process store ──────────────────────────────────────────
		mem := store.NewMemory()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("Failed to open seed file")
			}
			n, err := store.LoadSeed(f, mem)
			f.Close()
			if err != nil {
				log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("Failed to load seed file")
			}
			log.Info().Int("exams", n).Msg("Seed exams loaded")
		}
		st = mem
		log.Warn().Msg("Memory store selected: sessions do not survive a restart")

	case config.StoreDriverPostgres:
		// ─── Connect to PostgreSQL ─────────────────────────────────────
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		// ─── Connect to Redis ──────────────────────────────────────────
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		// ─── Repositories ──────────────────────────────────────────────
		st = repository.NewCachedStore(repository.NewStore(pool), rdb, cfg.ExamCacheTTL, log)
		events := repository.NewEventFeed(rdb)
		feed = events
		queue = events

		monitorService := service.NewMonitorService(repository.NewMonitorRepository(pool))
		monitor = handler.NewMonitorHandler(events, monitorService, log)

		checks["postgres"] = pool.Ping
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		// ─── Start Background Workers ──────────────────────────────────
		violationWorker := worker.NewViolationWorker(pool, rdb, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			violationWorker.Start(workerCtx)
		}()

	default:
		log.Fatal().Str("store", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret)
	sessionService := service.NewSessionService(st, feed, cfg, log)
	examService := service.NewExamService(st, log)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopSweeper := make(chan struct{})
	go limiter.RunSweeper(stopSweeper)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Exam:    handler.NewExamHandler(examService, log),
		Session: handler.NewSessionHandler(sessionService, log),
		Monitor: monitor,
		System:  handler.NewSystemHandler(cfg.StoreDriver, checks, queue, sessionService, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, limiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked WebSocket
	// connections are not tracked by Shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop live sessions. Answers already checkpointed stay in the store
	// and examinees resume on reconnect.
	sessionService.Shutdown()
	close(stopSweeper)

	// 3. Stop background workers and wait for the audit queue buffer to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
