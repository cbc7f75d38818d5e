package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"snapybara-server/auth"
	"snapybara-server/cache"
	"snapybara-server/config"
	"snapybara-server/database"
	"snapybara-server/handlers"
	"snapybara-server/jobs"
	"snapybara-server/logger"
	"snapybara-server/metrics"
	"snapybara-server/places"
	"snapybara-server/services"
)

func main() {
	boot, _ := zap.NewProduction()

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("load config", zap.Error(err))
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		boot.Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector("snapybara")

	// Mongo
	client, err := database.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout, log)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Warn("mongo disconnect", zap.Error(err))
		}
	}()
	db := client.Database(cfg.Mongo.Database)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	checks := map[string]handlers.HealthCheck{
		"mongo": func(ctx context.Context) error { return client.Ping(ctx, nil) },
	}

	// Cache
	store := newStore(ctx, cfg, log, checks)
	defer func() { _ = store.Close() }()

	manager := cache.NewManager(store, log, collector)
	invalidator := cache.NewInvalidator(manager, log, collector)

	// Providers
	placesClient := places.NewClient(places.Config{
		APIKey:   cfg.Places.APIKey,
		BaseURL:  cfg.Places.BaseURL,
		Language: cfg.Places.Language,
		Timeout:  cfg.Places.Timeout,
	}, manager, log, collector)
	overpass := places.NewOverpassClient(places.OverpassConfig{
		URL:     cfg.Overpass.URL,
		Timeout: cfg.Overpass.Timeout,
		Limit:   cfg.Overpass.Limit,
	}, log, collector)

	var sources []services.ExternalSource
	if placesClient.Enabled() {
		sources = append(sources, placesClient)
	} else {
		log.Warn("places provider disabled, no API key configured")
	}
	if overpass.Enabled() {
		sources = append(sources, overpass)
	}

	// Services
	pointRepo := database.NewPointRepository(db)
	reviewRepo := database.NewReviewRepository(db)

	notificationService := services.NewNotificationService(database.NewNotificationRepository(db), log)
	geoService := services.NewGeoService(pointRepo, sources, manager, services.GeoServiceConfig{
		DedupeDistance:  cfg.Search.DedupeDistance,
		LocalLimit:      cfg.Search.LocalLimit,
		ExternalTimeout: cfg.Search.ExternalTimeout,
	}, log, collector)
	pointService := services.NewPointService(pointRepo, reviewRepo, placesClient, invalidator, notificationService,
		services.PointServiceConfig{RequireModeration: cfg.Points.RequireModeration}, log)
	reviewService := services.NewReviewService(reviewRepo, pointRepo, pointService, notificationService, log)
	collectionService := services.NewCollectionService(database.NewCollectionRepository(db), pointRepo, log)
	userService := services.NewUserService(database.NewUserRepository(db), log)

	cleanup, err := jobs.NewCleanup(notificationService, cfg.Notifications.Retention, cfg.Notifications.PurgeSchedule, log)
	if err != nil {
		return err
	}
	cleanup.Start()
	defer cleanup.Stop()

	r := handlers.NewRouter(handlers.Handlers{
		Search:        handlers.NewSearchHandler(geoService),
		POIs:          handlers.NewPOIHandler(pointService),
		Reviews:       handlers.NewReviewHandler(reviewService),
		Places:        handlers.NewPlaceHandler(placesClient),
		Collections:   handlers.NewCollectionHandler(collectionService),
		Notifications: handlers.NewNotificationHandler(notificationService),
		Users:         handlers.NewUserHandler(userService),
		System:        handlers.NewSystemHandler(manager, checks, log),
	}, handlers.RouterConfig{
		Verifier:       auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience),
		WebhookSecret:  cfg.Webhook.Secret,
		AllowedOrigins: cfg.CORS.Origins(),
		Metrics:        collector,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Server.Addr), zap.Int("external_sources", len(sources)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newStore picks the cache backend and registers its health check. Redis
// being down at startup degrades the cache; it never blocks the server.
func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger, checks map[string]handlers.HealthCheck) cache.Store {
	if cfg.Cache.Driver == "memory" {
		log.Info("using in-process cache")
		return cache.NewMemoryStore(time.Hour, cfg.Cache.CleanupInterval)
	}

	store := cache.DialRedis(ctx, &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Cache.Prefix, cfg.Cache.OpTimeout, log)
	checks["redis"] = store.Ping
	return store
}
