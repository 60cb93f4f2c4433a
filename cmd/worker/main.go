package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/product-advisor/internal/bootstrap"
	"github.com/kirillkom/product-advisor/internal/config"
	"github.com/kirillkom/product-advisor/internal/observability/logging"
	"github.com/kirillkom/product-advisor/internal/observability/metrics"
)

const serviceName = "advisor-worker"

// The worker watches the document directories, rebuilds its own indexes to
// validate each change, re-embeds changed documents when a vector store is
// configured, and broadcasts a reload to the API instances.
func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logging.NewJSONLogger(serviceName, "info").Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Observers{
		Resilience: m,
		Reload:     m,
		Publish:    m,
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

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()

	watcher := app.NewWatcher(func(ctx context.Context, changed []string) {
		m.ObserveWatchTrigger()
		if app.Vectorize != nil {
			docs, err := app.SourceDocs(changed...)
			if err != nil {
				logger.Warn("vectorize_list_failed", "error", err)
			} else {
				report, err := app.Vectorize.IndexAll(ctx, docs)
				m.ObserveVectorize(report.Files, report.Chunks, report.Skipped, err)
				if err != nil {
					logger.Warn("vectorize_failed", "files", changed, "error", err)
				}
			}
		}
		if _, err := app.Reload.Reload(ctx, "watch"); err != nil {
			logger.Warn("watch_reload_failed", "files", changed, "error", err)
		}
	})
	if err := watcher.Run(ctx); err != nil {
		logger.Error("watcher_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker_metrics_shutdown_failed", "error", err)
	}
}
