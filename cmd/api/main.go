package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"veoqueue/internal/auth"
	"veoqueue/internal/events"
	"veoqueue/internal/http/handlers"
	"veoqueue/internal/http/httpapi"
	"veoqueue/internal/infra"
	"veoqueue/internal/infra/credentials"
	"veoqueue/internal/infra/geoip"
	"veoqueue/internal/jobstore"
	"veoqueue/internal/middleware"
	"veoqueue/internal/providers/genai"
	"veoqueue/internal/providers/video"
	"veoqueue/internal/scheduler"
	"veoqueue/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credential selection is persisted when a database is configured and
	// kept in memory otherwise.
	var source auth.CredentialSource = auth.NewStaticSource(cfg.GeminiAPIKey)
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure credential schema")
		}
		source = store
	}
	gate := auth.NewGate(source, &logger)

	var client video.OperationClient
	switch cfg.VideoProvider {
	case infra.VideoProviderSynthetic:
		client = genai.NewSyntheticClient(cfg.SyntheticPolls)
	default:
		veo, err := genai.NewClient(genai.Options{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.DefaultModel,
			Logger:  &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build veo client")
		}
		gate.OnSelect(veo.SetAPIKey)
		client = veo
	}

	restored, err := gate.Restore(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to restore stored credential")
	}
	if !restored && cfg.GeminiAPIKey != "" {
		if err := gate.Select(ctx, cfg.GeminiAPIKey); err != nil {
			logger.Error().Err(err).Msg("failed to select configured credential")
		}
	}
	if cfg.VideoProvider == infra.VideoProviderSynthetic && !gate.IsReady() {
		gate.MarkReady()
	}

	files, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare storage")
	}
	runner, err := video.NewRunner(video.RunnerOptions{
		Client:       client,
		PollInterval: cfg.PollInterval,
		Store:        files,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build video runner")
	}

	publisher, err := events.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.EventsBackend).Msg("failed to connect event backend")
	}
	forwarder := events.NewForwarder(publisher, &logger, 0)

	jobs := jobstore.New(jobstore.WithObserver(forwarder.Observe))
	sched, err := scheduler.New(scheduler.Options{
		Store:         jobs,
		Generator:     runner,
		Gate:          gate,
		Logger:        &logger,
		MaxConcurrent: cfg.MaxConcurrent,
		TickInterval:  cfg.TickInterval,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build scheduler")
	}
	if cfg.SchedulerAutorun {
		if err := sched.Start(); err != nil {
			logger.Warn().Err(err).Msg("scheduler autostart skipped")
		}
	}
	go sched.Run(ctx)

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		lookup = resolver.CountryCode
		defer resolver.Close()
	}

	app := &handlers.App{
		Store:        jobs,
		Scheduler:    sched,
		Gate:         gate,
		Files:        files,
		DefaultModel: cfg.DefaultModel,
		ImageMaxEdge: cfg.ImageMaxEdge,
		Logger:       &logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       files.BasePath(),
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("provider", cfg.VideoProvider).
			Str("events", cfg.EventsBackend).
			Bool("ready", gate.IsReady()).
			Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("in-flight jobs cancelled")
	}
	if err := forwarder.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close event publisher")
	}
	logger.Info().Msg("server stopped")
}
