package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"genstudio/internal/adapter/memstore"
	"genstudio/internal/adapter/repo"
	"genstudio/internal/domain"
	"genstudio/internal/http/handlers"
	httpapi "genstudio/internal/http/httpapi"
	"genstudio/internal/infra"
	"genstudio/internal/processor"
	"genstudio/internal/sqlinline"
	"genstudio/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if cfg.UsingDevSecret() {
		logger.Warn().Msg("JWT_SECRET not set, using development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		users       domain.UserRepository
		generations domain.GenerationRepository
	)
	if cfg.UsesMemoryStore() {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory stores")
		users, generations = memstore.NewUsers(), memstore.NewGenerations()
	} else {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()

		runner := infra.NewSQLRunner(pool, logger)
		if cfg.AutoMigrate {
			if err := infra.Migrate(ctx, runner, sqlinline.Schema); err != nil {
				logger.Fatal().Err(err).Msg("failed to apply schema")
			}
		}
		users, generations = repo.NewUserRepository(runner), repo.NewGenerationRepository(runner)
	}

	// Jobs live only in this process, so anything still processing was
	// orphaned by a previous run.
	if n, err := generations.FailStale(ctx, time.Now()); err != nil {
		logger.Error().Err(err).Msg("failed to recover stale generations")
	} else if n > 0 {
		logger.Warn().Int("count", n).Msg("marked stale generations failed")
	}

	store, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	strategy := processor.NewRandomStrategy(cfg.ProcessingMin, cfg.ProcessingMax, cfg.FailureRate, time.Now().UnixNano())
	proc := processor.New(generations, store, strategy, logger)

	app := handlers.NewApp(logger, users, generations, store, proc)
	app.JWTSecret = cfg.JWTSecret
	app.JWTTTL = cfg.JWTTTL
	app.UploadURLPrefix = cfg.UploadURLPrefix
	app.MaxUploadBytes = cfg.MaxUploadBytes
	app.MaxInFlightJobs = cfg.MaxInFlightJobs

	router := httpapi.NewRouter(app, httpapi.Options{
		CORSOrigins:    cfg.CORSOrigins,
		AuthRatePerMin: cfg.AuthRatePerMin,
		UploadDir:      store.BasePath(),
	}, logger)
	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("uploads", store.BasePath()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := proc.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Int("in_flight", proc.InFlight()).Msg("generations still running at exit")
	}
	logger.Info().Msg("server stopped")
}
