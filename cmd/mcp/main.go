// Command mcp serves the catalog tools over MCP on stdio. Logs go to stderr.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/product-advisor/internal/adapters/mcp"
	"github.com/kirillkom/product-advisor/internal/bootstrap"
	"github.com/kirillkom/product-advisor/internal/config"
	"github.com/kirillkom/product-advisor/internal/observability/logging"
)

const (
	serviceName = "advisor-mcp"
	version     = "1.0.0"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logging.NewTextLogger(os.Stderr, serviceName, "info").Error("dotenv_load_failed", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()
	logger := logging.NewTextLogger(os.Stderr, serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, expander, err := bootstrap.LoadCatalog(ctx, cfg, logger)
	if err != nil {
		logger.Error("catalog_load_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog_loaded", "known_models", len(cat.KnownModels()))

	tools := mcpadapter.NewTools(cat, expander, cfg.ModelTokenIgnore, logger)
	if err := server.ServeStdio(mcpadapter.NewServer(tools, version)); err != nil {
		logger.Error("mcp_serve_failed", "error", err)
		os.Exit(1)
	}
}
