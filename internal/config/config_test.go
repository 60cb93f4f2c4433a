package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("FUSION_RRF_K", "")
	t.Setenv("ALLOWLIST_MAX_ITEMS", "")
	t.Setenv("MAX_PROMPT_CHARS", "")
	t.Setenv("OLLAMA_MAX_CONCURRENT", "")
	t.Setenv("OLLAMA_QUEUE_TIMEOUT", "")
	t.Setenv("MIN_REQUEST_INTERVAL_MS", "")

	cfg := Load()
	if cfg.FusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.FusionRRFK)
	}
	if cfg.AllowlistMaxItems != 24 {
		t.Fatalf("expected default allowlist max 24, got %d", cfg.AllowlistMaxItems)
	}
	if cfg.MaxPromptChars != 14000 {
		t.Fatalf("expected default prompt budget 14000, got %d", cfg.MaxPromptChars)
	}
	if cfg.OllamaMaxConcurrent != 2 {
		t.Fatalf("expected default max concurrent 2, got %d", cfg.OllamaMaxConcurrent)
	}
	if cfg.OllamaQueueTimeout != 6*time.Second {
		t.Fatalf("expected default queue timeout 6s, got %s", cfg.OllamaQueueTimeout)
	}
	if cfg.MinRequestInterval != 650*time.Millisecond {
		t.Fatalf("expected default debounce 650ms, got %s", cfg.MinRequestInterval)
	}
	if !cfg.StrictAllowlist || !cfg.FusionEnabled {
		t.Fatalf("expected strict allowlist and fusion enabled by default")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("FUSION_RRF_K", "75")
	t.Setenv("BM25_K1", "1.2")
	t.Setenv("STRICT_ALLOWLIST", "false")
	t.Setenv("OLLAMA_QUEUE_TIMEOUT", "2s")
	t.Setenv("MODEL_TOKEN_IGNORE", "ISO9001, ,IP65")

	cfg := Load()
	if cfg.FusionRRFK != 75 {
		t.Fatalf("expected rrf k 75, got %d", cfg.FusionRRFK)
	}
	if cfg.BM25K1 != 1.2 {
		t.Fatalf("expected k1 1.2, got %v", cfg.BM25K1)
	}
	if cfg.StrictAllowlist {
		t.Fatalf("expected strict allowlist override to false")
	}
	if cfg.OllamaQueueTimeout != 2*time.Second {
		t.Fatalf("expected queue timeout 2s, got %s", cfg.OllamaQueueTimeout)
	}
	if len(cfg.ModelTokenIgnore) != 2 || cfg.ModelTokenIgnore[1] != "IP65" {
		t.Fatalf("unexpected ignore list: %#v", cfg.ModelTokenIgnore)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("FUSION_RRF_K", "sixty")
	t.Setenv("BM25_B", "x")
	t.Setenv("STRICT_ALLOWLIST", "maybe")

	cfg := Load()
	if cfg.FusionRRFK != 60 || cfg.BM25B != 0.75 || !cfg.StrictAllowlist {
		t.Fatalf("expected fallbacks, got k=%d b=%v strict=%v", cfg.FusionRRFK, cfg.BM25B, cfg.StrictAllowlist)
	}
}

func TestLoadDotEnvDoesNotOverrideExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CATALOG_DIR=/from/dotenv\nPROMPT_VERSION=v9\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("PROMPT_VERSION", "v4")
	t.Setenv("CATALOG_DIR", "")
	os.Unsetenv("CATALOG_DIR")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	cfg := Load()
	if cfg.CatalogDir != "/from/dotenv" {
		t.Fatalf("expected catalog dir from dotenv, got %q", cfg.CatalogDir)
	}
	if cfg.PromptVersion != "v4" {
		t.Fatalf("expected existing env to win, got %q", cfg.PromptVersion)
	}
}

func TestLoadDotEnvMissingFileIsIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
}
