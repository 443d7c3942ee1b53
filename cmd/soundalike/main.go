package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sydlexius/soundalike/internal/api"
	"github.com/sydlexius/soundalike/internal/api/middleware"
	"github.com/sydlexius/soundalike/internal/catalog"
	"github.com/sydlexius/soundalike/internal/catalog/spotify"
	"github.com/sydlexius/soundalike/internal/config"
	"github.com/sydlexius/soundalike/internal/logging"
	"github.com/sydlexius/soundalike/internal/recommend"
	"github.com/sydlexius/soundalike/internal/version"
	"github.com/sydlexius/soundalike/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(cfg.Logging)
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	logger.Info("starting soundalike",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	// Catalog client: rate limiter, Spotify adapter, circuit breaker.
	limiter := catalog.NewRateLimiterMap()
	limiter.SetLimit(catalog.NameSpotify, cfg.Catalog.RequestsPerSecond)

	adapter := spotify.New(spotify.Config{
		ClientID:     cfg.Catalog.ClientID,
		ClientSecret: cfg.Catalog.ClientSecret,
		BaseURL:      cfg.Catalog.BaseURL,
		TokenURL:     cfg.Catalog.TokenURL,
		Market:       cfg.Catalog.Market,
		Timeout:      cfg.Catalog.RequestTimeout,
	}, limiter, logger)

	breakerSettings := catalog.DefaultBreakerSettings()
	breakerSettings.FailureRatio = cfg.Catalog.Breaker.FailureRatio
	breakerSettings.MinRequests = cfg.Catalog.Breaker.MinRequests
	breakerSettings.OpenTimeout = cfg.Catalog.Breaker.OpenTimeout
	client := catalog.NewBreaker(adapter, breakerSettings, logger)

	if err := warmUp(client, cfg.Catalog.RequestTimeout, logger); err != nil {
		return err
	}

	engine := recommend.NewEngine(client, logger)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := api.NewRouter(api.RouterDeps{
		Engine:       engine,
		Logger:       logger,
		BasePath:     cfg.Server.BasePath,
		RateLimiter:  middleware.NewIPRateLimiter(ctx, cfg.Server.RequestsPerMinute),
		Metrics:      promhttp.Handler(),
		CatalogState: func() string { return client.State().String() },
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Re-apply the logging section whenever the config file changes.
	{
		reload := func(context.Context) error {
			lc, err := config.LoadLogging(configPath)
			if err != nil {
				return err
			}
			if logManager.Reconfigure(lc) {
				logger.Info("logging reconfigured",
					slog.String("level", lc.Level),
					slog.String("format", lc.Format))
			}
			return nil
		}
		go watcher.NewService(configPath, reload, logger).Start(ctx)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// warmUp issues one cheap catalog call so bad credentials or an unreachable
// catalog stop the process before it accepts traffic.
func warmUp(p catalog.Pinger, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		logger.Error("catalog warm-up failed", slog.String("error", err.Error()))
		return fmt.Errorf("catalog warm-up: %w", err)
	}
	logger.Info("catalog client ready")
	return nil
}
