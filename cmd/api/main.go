package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/this-th/snomed-endoproc-lookup/internal/adapters/analytics"
	"github.com/this-th/snomed-endoproc-lookup/internal/adapters/cache"
	"github.com/this-th/snomed-endoproc-lookup/internal/adapters/events"
	"github.com/this-th/snomed-endoproc-lookup/internal/adapters/terminology"
	"github.com/this-th/snomed-endoproc-lookup/internal/api/handlers"
	"github.com/this-th/snomed-endoproc-lookup/internal/api/middleware"
	"github.com/this-th/snomed-endoproc-lookup/internal/api/routes"
	"github.com/this-th/snomed-endoproc-lookup/internal/application/services"
	"github.com/this-th/snomed-endoproc-lookup/internal/domain/providers"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/clients/redis"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/clients/snowstorm"
	"github.com/this-th/snomed-endoproc-lookup/internal/infrastructure/observability"
	"github.com/this-th/snomed-endoproc-lookup/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := observability.InitLogger(observability.LogOptions{
		Service: cfg.OTEL.ServiceName,
		Version: cfg.OTEL.ServiceVersion,
		Level:   cfg.Log.Level,
		Console: cfg.ConsoleLogs(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	snowstormClient := snowstorm.NewClient(&cfg.Snowstorm, snowstorm.WithMetrics(metrics))
	log.Info().
		Str("search_endpoint", snowstormClient.SearchEndpoint()).
		Dur("timeout", cfg.Snowstorm.Timeout).
		Dur("total_timeout", cfg.Snowstorm.TotalTimeout).
		Msg("Terminology client initialized")

	var (
		terminologyProvider providers.TerminologyProvider = snowstormClient
		eventBus            providers.EventBus
		cacheMiddleware     *middleware.CacheMiddleware
		analyticsHandler    *handlers.AnalyticsHandler
	)

	// Redis is optional; the service works without caching or search events
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis client, continuing without cache")
		} else {
			defer redisClient.Close()

			cacheProvider := cache.NewRedisAdapter(redisClient.Client())
			terminologyProvider = terminology.NewCachedTerminologyAdapter(
				snowstormClient, cacheProvider, cfg.Cache.ConceptTTLSeconds, metrics,
			)
			cacheMiddleware = middleware.NewCacheMiddleware(
				cacheProvider, metrics, middleware.DefaultCacheRules(cfg.Cache.ResponseTTLSeconds)...,
			)
			eventBus = events.NewRedisEventBus(redisClient.Client())
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis cache and event bus initialized")

			analyticsService := services.NewSearchAnalyticsService(
				analytics.NewRedisSearchAnalyticsAdapter(redisClient.Client(), analytics.DefaultMaxEntries),
			)
			if err := analyticsService.Start(ctx, eventBus); err != nil {
				log.Warn().Err(err).Msg("Failed to start search analytics")
			} else {
				analyticsHandler = handlers.NewAnalyticsHandler(analyticsService)
			}
		}
	}

	sessionStore := services.NewSessionStore(terminologyProvider, eventBus, cfg.Search.PageSize, cfg.Search.SessionIdleTTL)
	if cfg.Search.SessionIdleTTL > 0 {
		sessionStore.StartSweeper(ctx, max(cfg.Search.SessionIdleTTL/2, time.Second))
	}

	router := routes.NewRouter(
		handlers.NewProxyHandler(snowstormClient),
		handlers.NewFacetHandler(snowstormClient.SearchEndpoint(), cfg.Search.PageSize),
		handlers.NewSessionHandler(sessionStore),
		analyticsHandler,
		cacheMiddleware,
		metrics,
		cfg.Server.AllowedOrigins,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Snowstorm.TotalTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}

	log.Info().Int("sessions", sessionStore.Len()).Msg("Server stopped")
}
