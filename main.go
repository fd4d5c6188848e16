package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/pricewatch/config"
	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/internal/api"
	"sjsage522/pricewatch/internal/extractor"
	"sjsage522/pricewatch/internal/fetcher"
	"sjsage522/pricewatch/internal/monitor"
	"sjsage522/pricewatch/internal/notifier"
	"sjsage522/pricewatch/internal/registry"
	"sjsage522/pricewatch/internal/renderer"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/services/cache"
	"sjsage522/pricewatch/services/publisher"
	"sjsage522/pricewatch/services/worker"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("renderer", cfg.Renderer).
		Str("store", cfg.StoreBackend).
		Dur("check_interval", cfg.CheckInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           api.NewRouter(services.Monitor),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverDone := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Price monitor API listening")
		serverDone <- server.ListenAndServe()
	}()

	// Create and start worker
	w := worker.NewWorker(
		ctx,
		services.Monitor,
		services.Publisher,
		helpers.NewLogger("worker"),
		cfg.CheckInterval,
	)
	go w.Start()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server exited with error")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

// Services holds all the initialized services
type Services struct {
	Registry  *registry.Registry
	Renderer  renderer.Renderer
	Publisher publisher.Publisher
	Monitor   *monitor.Monitor
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if closer, ok := s.Renderer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.LogError("Renderer", err, "Failed to close renderer")
		}
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Registry != nil {
		if err := s.Registry.Close(); err != nil {
			logger.LogError("Registry", err, "Failed to close product store")
		}
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize registry
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.Registry = registry.New(store, registry.WithHistoryLimit(cfg.HistoryLimit))

	// Initialize extractor
	ex := extractor.NewDefault()
	if cfg.LocatorsFile != "" {
		chains, err := extractor.LoadChains(cfg.LocatorsFile)
		if err != nil {
			return nil, err
		}
		ex = extractor.New(chains)
		logger.Info("Loaded locator chains from %s", cfg.LocatorsFile)
	}

	// Initialize renderer
	r, err := renderer.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	services.Renderer = r

	fetchOpts := []fetcher.Option{fetcher.WithOptions(renderer.OptionsFromConfig(cfg))}
	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			logger.Warn("Memcache at %s is not reachable, fetch blocks disabled until it recovers: %v", cfg.MemcacheAddr, err)
		} else {
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
		fetchOpts = append(fetchOpts, fetcher.WithBlockCache(cacheService, cfg.FetchBlockTime))
	}
	f := fetcher.New(r, ex, fetchOpts...)

	// Initialize notifier
	var mailer notifier.Mailer = notifier.DisabledMailer{}
	if cfg.EmailConfigured() {
		mailer = notifier.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridURL)
	} else {
		logger.Warn("SENDGRID_API_KEY or FROM_EMAIL not set, price drop emails are disabled")
	}

	dispatchOpts := []notifier.DispatcherOption{notifier.WithCurrency(cfg.CurrencySymbol)}
	if cfg.AlertStream != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.AlertStream,
			cfg.AlertStreamCount,
			cfg.AlertStreamMaxLength,
		)
		services.Publisher = redisPublisher
		dispatchOpts = append(dispatchOpts, notifier.WithPublisher(redisPublisher))

		logger.Info("Publishing alerts to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.AlertStream)
	}
	n := notifier.NewDispatcher(mailer, cfg.FromEmail, dispatchOpts...)

	services.Monitor = monitor.New(services.Registry, f, n, monitor.NewDelayPacer(cfg.CheckDelay))
	return services, nil
}

func newStore(ctx context.Context, cfg *config.Config) (registry.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		store := registry.NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.RedisKeyPrefix)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("Connected to Redis at %s (DB: %d)", cfg.RedisAddr, cfg.RedisDB)
		return store, nil
	case config.StoreMySQL:
		store, err := registry.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to MySQL product store")
		return store, nil
	default:
		return registry.NewMemoryStore(), nil
	}
}
