package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/product-advisor/internal/adapters/http"
	"github.com/kirillkom/product-advisor/internal/bootstrap"
	"github.com/kirillkom/product-advisor/internal/config"
	"github.com/kirillkom/product-advisor/internal/observability/logging"
	"github.com/kirillkom/product-advisor/internal/observability/metrics"
)

const serviceName = "advisor-api"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logging.NewJSONLogger(serviceName, "info").Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Observers{
		Resilience: m,
		Reload:     m,
		Chat:       m,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if _, err := app.Reload.Warm(ctx); err != nil {
		logger.Error("initial_build_failed", "error", err)
		os.Exit(1)
	}

	if app.Bus != nil {
		go func() {
			if err := app.Bus.SubscribeReload(ctx, app.Reload.ApplyRemote); err != nil {
				logger.Error("reload_subscribe_failed", "error", err)
			}
		}()
	}
	if cfg.WatchCatalog {
		watcher := app.NewWatcher(func(ctx context.Context, changed []string) {
			if _, err := app.Reload.Reload(ctx, "watch"); err != nil {
				logger.Warn("watch_reload_failed", "files", changed, "error", err)
			}
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("watcher_failed", "error", err)
			}
		}()
	}

	router, err := httpadapter.NewRouter(cfg, httpadapter.Deps{
		Chat:     app.Chat,
		Reload:   app.Reload,
		Uploader: app.Ingest,
		Company:  app.Reload,
		Status:   app.Reload,
		Probes:   app.Probes,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.OllamaTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
