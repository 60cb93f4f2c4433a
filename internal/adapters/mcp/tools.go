// Package mcpadapter exposes the catalog resolver, query expansion and the
// answer allowlist check as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/expansion"
	"github.com/kirillkom/product-advisor/internal/core/guard"
	"github.com/kirillkom/product-advisor/internal/core/modelkey"
	"github.com/kirillkom/product-advisor/internal/core/requirement"
)

const (
	serverName      = "product-advisor"
	defaultRankTopN = 8
	maxRankTopN     = 50
)

// Tools holds the read-only collaborators behind the MCP tools.
type Tools struct {
	catalog  *catalog.Index
	expander *expansion.Expander
	enforcer *guard.Enforcer
	logger   *slog.Logger
}

func NewTools(cat *catalog.Index, expander *expansion.Expander, ignore []string, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	if expander == nil {
		expander = expansion.NewExpander(nil)
	}
	return &Tools{
		catalog:  cat,
		expander: expander,
		enforcer: guard.NewEnforcer(true, ignore),
		logger:   logger,
	}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	tools.Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("resolve_product",
		mcp.WithDescription("Resolve a product phrase, model code or alias to a catalog product."),
		mcp.WithString("phrase", mcp.Required(), mcp.Description("Free-form user text or model code")),
	), t.logged("resolve_product", t.resolveProduct))

	s.AddTool(mcp.NewTool("rank_products",
		mcp.WithDescription("Rank catalog products by BM25 relevance to a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithArray("extra_terms", mcp.Description("Additional retrieval terms"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithNumber("top_n", mcp.Description("Maximum results, default 8")),
	), t.logged("rank_products", t.rankProducts))

	s.AddTool(mcp.NewTool("expand_query",
		mcp.WithDescription("Expand a phrase into alias terms and the vector search query set."),
		mcp.WithString("phrase", mcp.Required(), mcp.Description("User text")),
		mcp.WithArray("extra_terms", mcp.Description("Requirement terms to include"), mcp.Items(map[string]any{"type": "string"})),
	), t.logged("expand_query", t.expandQuery))

	s.AddTool(mcp.NewTool("requirement_terms",
		mcp.WithDescription("Turn requirement interview answers into retrieval terms."),
		mcp.WithString("target", mcp.Description("What is measured")),
		mcp.WithString("object_band", mcp.Description("Object or wavelength band")),
		mcp.WithString("scene_constraints", mcp.Description("Usage scene and constraints")),
	), t.logged("requirement_terms", t.requirementTerms))

	s.AddTool(mcp.NewTool("check_answer",
		mcp.WithDescription("Check an answer for model codes outside the allowlist. Defaults to every known catalog model."),
		mcp.WithString("answer", mcp.Required(), mcp.Description("Generated answer text")),
		mcp.WithArray("allowlist", mcp.Description("Allowed model codes"), mcp.Items(map[string]any{"type": "string"})),
	), t.logged("check_answer", t.checkAnswer))
}

func (t *Tools) logged(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		started := time.Now()
		res, err := h(ctx, req)
		failed := err != nil || (res != nil && res.IsError)
		t.logger.Info("mcp_tool_call", "tool", name, "failed", failed, "duration_ms", time.Since(started).Milliseconds())
		return res, err
	}
}

type resolveResult struct {
	Found   bool                  `json:"found"`
	File    string                `json:"file,omitempty"`
	Product *domain.ProductRecord `json:"product,omitempty"`
}

func (t *Tools) resolveProduct(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phrase, err := req.RequireString("phrase")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, ok := t.catalog.ResolveFromUserText(phrase)
	if !ok {
		return jsonResult(resolveResult{})
	}
	return jsonResult(resolveResult{Found: true, File: rec.Filename(), Product: rec})
}

func (t *Tools) rankProducts(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topN := req.GetInt("top_n", defaultRankTopN)
	if topN <= 0 {
		topN = defaultRankTopN
	}
	topN = min(topN, maxRankTopN)
	stems := t.catalog.RankByLexicalScore(query, req.GetStringSlice("extra_terms", nil), topN)
	if stems == nil {
		stems = []string{}
	}
	return jsonResult(map[string]any{"stems": stems})
}

func (t *Tools) expandQuery(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phrase, err := req.RequireString("phrase")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	extra := req.GetStringSlice("extra_terms", nil)
	aliases := t.expander.ExpandByAlias(phrase)
	key := modelkey.First(phrase)
	return jsonResult(map[string]any{
		"model_key":      key,
		"alias_terms":    nonNil(aliases),
		"search_queries": nonNil(expansion.BuildSearchQueries(phrase, aliases, extra, key)),
	})
}

func (t *Tools) requirementTerms(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	answers := domain.RequirementAnswers{
		Target:           req.GetString("target", ""),
		ObjectBand:       req.GetString("object_band", ""),
		SceneConstraints: req.GetString("scene_constraints", ""),
	}
	return jsonResult(map[string]any{"terms": nonNil(requirement.BuildQueryTerms(answers))})
}

func (t *Tools) checkAnswer(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	answer, err := req.RequireString("answer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	allow := req.GetStringSlice("allowlist", nil)
	if len(allow) == 0 {
		allow = t.catalog.KnownModels()
	}
	verdict := t.enforcer.Enforce(answer, allow)
	return jsonResult(map[string]any{
		"blocked":    verdict.Blocked,
		"bad_models": nonNil(verdict.BadModels),
		"mentions":   nonNil(t.enforcer.Mentions(answer)),
		"text":       verdict.Text,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
