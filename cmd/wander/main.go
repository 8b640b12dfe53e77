package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wanderapp/wander/internal/circuitbreaker"
	"github.com/wanderapp/wander/internal/client"
	"github.com/wanderapp/wander/internal/config"
	"github.com/wanderapp/wander/internal/credentials"
	"github.com/wanderapp/wander/internal/httpapi"
	"github.com/wanderapp/wander/internal/observability"
	"github.com/wanderapp/wander/internal/storage"
	"github.com/wanderapp/wander/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var (
		backing     storage.Store
		storagePing func() error
		closer      interface{ Close() error }
	)
	switch cfg.StorageBackend {
	case "memory":
		backing = storage.NewMemoryStore()
	case "file":
		fs, err := storage.NewFileStore(cfg.StoragePath, logger)
		if err != nil {
			logger.Fatal("file storage", zap.Error(err))
		}
		backing = fs
	case "memcached":
		mc, err := storage.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached storage", zap.Error(err))
		}
		if err := mc.Ping(); err != nil {
			logger.Warn("memcached unreachable at startup", zap.Error(err))
		}
		backing = mc
		storagePing = mc.Ping
		closer = mc
	}
	logger.Info("storage ready", zap.String("backend", cfg.StorageBackend))

	retry := client.Retry{
		Attempts:  cfg.RetryAttempts,
		BaseDelay: cfg.RetryBaseDelay,
		MaxDelay:  cfg.RetryMaxDelay,
	}
	breakerFor := func(service string) *circuitbreaker.Breaker {
		return circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Timeout:          cfg.BreakerTimeout,
			Service:          service,
			OnStateChange: func(service string, from, to circuitbreaker.State) {
				logger.Warn("circuit breaker transition",
					zap.String("service", service),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
				observability.RecordBreakerTransition(service, from.String(), to.String(), int(to))
			},
		})
	}

	geocode := client.NewGeocodeClient(cfg.GeocodeURL, cfg.UpstreamTimeout, retry)
	geocode.SetBreaker(breakerFor("geocode"))

	places, err := client.NewPlacesClient(cfg.PlacesAPIKey, cfg.PlacesURL, cfg.PlacesRadius, cfg.PlacesLimit, cfg.PlacesCategories, cfg.UpstreamTimeout, retry)
	if err != nil {
		logger.Fatal("places client", zap.Error(err))
	}
	places.SetBreaker(breakerFor("places"))

	weatherClient := client.NewWeatherClient(cfg.WeatherURL, cfg.UpstreamTimeout, retry)
	weatherClient.SetBreaker(breakerFor("weather"))

	ipLocate := client.NewIPLocateClient(cfg.IPLocateURL, cfg.UpstreamTimeout, retry)
	ipLocate.SetBreaker(breakerFor("iplocate"))

	directory := credentials.NewDirectory(backing, logger)
	auth := store.NewAuthStore(backing, logger)
	auth.RestoreSession()
	settings := store.NewSettingsStore(backing, logger, time.Now)
	location := store.NewLocationStore(ipLocate, geocode, places, settings, backing, logger)
	weather := store.NewWeatherStore(weatherClient, cfg.WeatherDebounce, logger)
	location.Subscribe(weather.CoordinatesChanged)
	favourites := store.NewFavouritesStore(backing, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := httpapi.NewHandler(directory, auth, settings, location, weather, favourites, logger, storagePing)
	router := httpapi.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if closer != nil {
		if err := closer.Close(); err != nil {
			logger.Error("storage close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
