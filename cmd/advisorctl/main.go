// Command advisorctl inspects the product catalog offline and runs
// maintenance jobs: vector indexing, card imports and cluster reloads.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/product-advisor/internal/config"
	"github.com/kirillkom/product-advisor/internal/observability/logging"
)

const serviceName = "advisorctl"

type rootOptions struct {
	envFile    string
	catalogDir string
	aliasPath  string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "advisorctl",
		Short:         "Product advisor catalog and maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&opts.catalogDir, "catalog-dir", "", "override CATALOG_DIR")
	root.PersistentFlags().StringVar(&opts.aliasPath, "aliases", "", "override ALIAS_PATH")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newResolveCmd(opts),
		newRankCmd(opts),
		newExpandCmd(opts),
		newTermsCmd(),
		newCheckCmd(opts),
		newIndexCmd(opts),
		newCardsCmd(opts),
		newReloadCmd(opts),
	)
	return root
}

func (o *rootOptions) config() (config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return config.Config{}, fmt.Errorf("load %s: %w", o.envFile, err)
	}
	cfg := config.Load()
	if o.catalogDir != "" {
		cfg.CatalogDir = o.catalogDir
	}
	if o.aliasPath != "" {
		cfg.AliasPath = o.aliasPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) logger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logging.NewTextLogger(cmd.ErrOrStderr(), serviceName, cfg.LogLevel)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
