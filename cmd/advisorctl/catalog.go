package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/product-advisor/internal/bootstrap"
	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/expansion"
	"github.com/kirillkom/product-advisor/internal/core/guard"
	"github.com/kirillkom/product-advisor/internal/core/modelkey"
	"github.com/kirillkom/product-advisor/internal/core/requirement"
)

const defaultRankTop = 8

func (o *rootOptions) loadCatalog(cmd *cobra.Command) (*catalog.Index, *expansion.Expander, []string, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, nil, err
	}
	cat, expander, err := bootstrap.LoadCatalog(cmd.Context(), cfg, o.logger(cmd, cfg))
	if err != nil {
		return nil, nil, nil, err
	}
	return cat, expander, cfg.ModelTokenIgnore, nil
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <text>",
		Short: "Resolve free text, a model code or an alias to a catalog product",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, _, err := opts.loadCatalog(cmd)
			if err != nil {
				return err
			}
			out := map[string]any{"found": false}
			if rec, ok := cat.ResolveFromUserText(strings.Join(args, " ")); ok {
				out = map[string]any{"found": true, "file": rec.Filename(), "product": rec}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newRankCmd(opts *rootOptions) *cobra.Command {
	var (
		extra []string
		top   int
	)
	cmd := &cobra.Command{
		Use:   "rank <query>",
		Short: "Rank catalog products by BM25 relevance",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, _, err := opts.loadCatalog(cmd)
			if err != nil {
				return err
			}
			if top <= 0 {
				top = defaultRankTop
			}
			stems := cat.RankByLexicalScore(strings.Join(args, " "), extra, top)
			return printJSON(cmd.OutOrStdout(), map[string]any{"stems": nonNil(stems)})
		},
	}
	cmd.Flags().StringSliceVar(&extra, "extra", nil, "additional retrieval terms")
	cmd.Flags().IntVar(&top, "top", defaultRankTop, "maximum results")
	return cmd
}

func newExpandCmd(opts *rootOptions) *cobra.Command {
	var extra []string
	cmd := &cobra.Command{
		Use:   "expand <text>",
		Short: "Show alias expansion and the vector search query set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, expander, _, err := opts.loadCatalog(cmd)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			aliases := expander.ExpandByAlias(text)
			key := modelkey.First(text)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"model_key":      key,
				"alias_terms":    nonNil(aliases),
				"search_queries": nonNil(expansion.BuildSearchQueries(text, aliases, extra, key)),
			})
		},
	}
	cmd.Flags().StringSliceVar(&extra, "extra", nil, "requirement terms to include")
	return cmd
}

func newTermsCmd() *cobra.Command {
	var answers domain.RequirementAnswers
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "Turn requirement interview answers into retrieval terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"terms": nonNil(requirement.BuildQueryTerms(answers)),
			})
		},
	}
	cmd.Flags().StringVar(&answers.Target, "target", "", "what is measured")
	cmd.Flags().StringVar(&answers.ObjectBand, "band", "", "object or wavelength band")
	cmd.Flags().StringVar(&answers.SceneConstraints, "scene", "", "usage scene and constraints")
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var allow []string
	cmd := &cobra.Command{
		Use:   "check <answer>",
		Short: "Check an answer for model codes outside the allowlist",
		Long:  "Check an answer for model codes outside the allowlist. Without --allow every known catalog model is allowed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, ignore, err := opts.loadCatalog(cmd)
			if err != nil {
				return err
			}
			if len(allow) == 0 {
				allow = cat.KnownModels()
			}
			answer := strings.Join(args, " ")
			enforcer := guard.NewEnforcer(true, ignore)
			verdict := enforcer.Enforce(answer, allow)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"blocked":    verdict.Blocked,
				"bad_models": nonNil(verdict.BadModels),
				"mentions":   nonNil(enforcer.Mentions(answer)),
				"text":       verdict.Text,
			})
		},
	}
	cmd.Flags().StringSliceVar(&allow, "allow", nil, "allowed model codes")
	return cmd
}
