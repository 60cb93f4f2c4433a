package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/product-advisor/internal/bootstrap"
	"github.com/kirillkom/product-advisor/internal/infrastructure/cardfile"
	"github.com/kirillkom/product-advisor/internal/infrastructure/repository/postgres"
)

func (o *rootOptions) app(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cmd.Context(), cfg, o.logger(cmd, cfg), bootstrap.Observers{})
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index [file...]",
		Short: "Embed product and system documents into the vector collection",
		Long:  "Embed product and system documents into the vector collection. With file names only those documents are re-indexed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			if app.Vectorize == nil {
				return errors.New("QDRANT_URL is not set")
			}
			docs, err := app.SourceDocs(args...)
			if err != nil {
				return err
			}
			report, err := app.Vectorize.IndexAll(cmd.Context(), docs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newCardsCmd(opts *rootOptions) *cobra.Command {
	cards := &cobra.Command{
		Use:   "cards",
		Short: "Manage structured product cards",
	}
	cards.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Upsert product cards from a JSON, YAML or XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return errors.New("POSTGRES_DSN is not set")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			batch, err := cardfile.Decode(filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			defer db.Close()
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			repo := postgres.NewProductCardRepository(db)
			for _, card := range batch {
				if _, err := repo.Upsert(ctx, card); err != nil {
					return fmt.Errorf("card %q: %w", card.Title, err)
				}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"imported": len(batch)})
		},
	})
	return cards
}

func newReloadCmd(opts *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Rebuild the indexes locally and broadcast a reload to running instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			if app.Bus == nil {
				return errors.New("NATS_URL is not set")
			}
			report, err := app.Reload.Reload(cmd.Context(), reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "cli", "reason recorded in the reload event")
	return cmd
}
