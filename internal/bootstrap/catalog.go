package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kirillkom/product-advisor/internal/config"
	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/expansion"
	"github.com/kirillkom/product-advisor/internal/core/lexical"
	"github.com/kirillkom/product-advisor/internal/infrastructure/aliases"
)

// LoadCatalog builds only the alias dictionary and the product catalog from
// disk. It needs no network dependency.
func LoadCatalog(ctx context.Context, cfg config.Config, logger *slog.Logger) (*catalog.Index, *expansion.Expander, error) {
	dict, err := aliases.NewFileLoader(cfg.AliasPath).Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load aliases: %w", err)
	}
	expander := expansion.NewExpander(dict)
	cat := newCatalog(cfg, expander, logger)
	if _, err := cat.Rebuild(ctx); err != nil {
		return nil, nil, fmt.Errorf("rebuild catalog: %w", err)
	}
	return cat, expander, nil
}

func newCatalog(cfg config.Config, expander *expansion.Expander, logger *slog.Logger) *catalog.Index {
	return catalog.New(os.DirFS(cfg.CatalogDir), catalog.Config{
		RankTopN: cfg.BM25TopN,
		Lexical: lexical.Params{
			K1:       cfg.BM25K1,
			B:        cfg.BM25B,
			MaxChars: cfg.BM25TextMaxChars,
		},
		LexicalDisabled: !cfg.BM25Enabled,
	}, expander, logger)
}
