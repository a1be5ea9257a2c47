package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/autolinkhq/autolink-backend/api/routes"
	"github.com/autolinkhq/autolink-backend/internal/auth"
	"github.com/autolinkhq/autolink-backend/internal/garage"
	"github.com/autolinkhq/autolink-backend/internal/profiles"
	"github.com/autolinkhq/autolink-backend/internal/registry"
	"github.com/autolinkhq/autolink-backend/pkg/auth/session"
	"github.com/autolinkhq/autolink-backend/pkg/config"
	"github.com/autolinkhq/autolink-backend/pkg/db"
	"github.com/autolinkhq/autolink-backend/pkg/logger"
	"github.com/autolinkhq/autolink-backend/pkg/metrics"
	"github.com/autolinkhq/autolink-backend/pkg/migrate"
	"github.com/autolinkhq/autolink-backend/pkg/redis"
	"github.com/autolinkhq/autolink-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	// Avatar storage is optional; the profile service degrades to a 503 on
	// avatar endpoints when it is absent.
	var avatarSigner *gcs.Client
	if cfg.GCS.BucketName != "" {
		avatarSigner, err = gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "avatar storage unavailable, continuing without it")
			avatarSigner = nil
		}
	}

	profileRepo := profiles.NewRepository(dbClient.DB())
	var profileService profiles.Service
	if avatarSigner != nil {
		profileService, err = profiles.NewService(profileRepo, avatarSigner, cfg.GCS.UploadURLExpiry)
	} else {
		profileService, err = profiles.NewService(profileRepo, nil, cfg.GCS.UploadURLExpiry)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to create profile service", err)
		os.Exit(1)
	}

	garageService, err := garage.NewService(garage.NewRepository(dbClient.DB()), cfg.Garage, cfg.FeatureFlags)
	if err != nil {
		logg.Error(context.Background(), "failed to create garage service", err)
		os.Exit(1)
	}

	registryClient, err := registry.NewClient(cfg.Registry)
	if err != nil {
		logg.Error(context.Background(), "failed to create registry client", err)
		os.Exit(1)
	}
	registryService, err := registry.NewService(registryClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create registry service", err)
		os.Exit(1)
	}
	selector, err := garage.NewSelector(registryService)
	if err != nil {
		logg.Error(context.Background(), "failed to create registry selector", err)
		os.Exit(1)
	}

	googleProvider, err := auth.NewGoogleProvider(cfg.Google)
	if err != nil {
		logg.Error(context.Background(), "failed to create google provider", err)
		os.Exit(1)
	}
	authService, err := auth.NewService(googleProvider, profileService, sessionManager, redisClient, cfg.App, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(promRegistry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Cache:          redisClient,
			Limiter:        redisClient,
			Session:        sessionManager,
			AuthService:    authService,
			ProfileService: profileService,
			GarageService:  garageService,
			Selector:       selector,
			HTTPMetrics:    httpMetrics,
			Registry:       promRegistry,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
