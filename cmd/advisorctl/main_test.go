package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func catalogArgs(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "product_SRI-2000.md"), "產品名稱：高速光譜儀\n型號：SRI-2000\n紫外線 光譜 spectrometer")
	writeFile(t, filepath.Join(dir, "product_LX-10.md"), "名稱: 照度計\nModel: LX-10\n照度 lux meter illuminance")
	aliases := filepath.Join(dir, "aliases.json")
	writeFile(t, aliases, `{"SRI2000": ["高速光譜儀"]}`)
	return []string{
		"--env", filepath.Join(dir, "missing.env"),
		"--catalog-dir", dir,
		"--aliases", aliases,
		"--log-level", "error",
	}
}

func run(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	return decoded, nil
}

func mustRun(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out
}

func strs(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.(string))
	}
	return out
}

func TestResolveCommand(t *testing.T) {
	base := catalogArgs(t)
	out := mustRun(t, append([]string{"resolve", "lx10", "規格"}, base...)...)
	if out["found"] != true || out["file"] != "product_LX-10.md" {
		t.Fatalf("unexpected resolve output: %v", out)
	}

	out = mustRun(t, append([]string{"resolve", "咖啡機"}, base...)...)
	if out["found"] != false {
		t.Fatalf("expected no match, got %v", out)
	}
}

func TestRankCommand(t *testing.T) {
	out := mustRun(t, append([]string{"rank", "照度", "lux", "--top", "1"}, catalogArgs(t)...)...)
	if diff := cmp.Diff([]string{"LX-10"}, strs(out["stems"])); diff != "" {
		t.Fatalf("unexpected stems (-want +got):\n%s", diff)
	}
}

func TestExpandCommandUsesAliasFile(t *testing.T) {
	out := mustRun(t, append([]string{"expand", "高速光譜儀"}, catalogArgs(t)...)...)
	aliases := strs(out["alias_terms"])
	found := false
	for _, a := range aliases {
		if a == "sri2000" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected canonical alias key in %v", aliases)
	}
}

func TestTermsCommand(t *testing.T) {
	out := mustRun(t, "terms", "--target", "照度", "--band", "UVC LED 275nm")
	terms := strings.Join(strs(out["terms"]), " ")
	for _, want := range []string{"照度", "UVC", "275nm"} {
		if !strings.Contains(terms, want) {
			t.Fatalf("expected %q in %q", want, terms)
		}
	}
}

func TestCheckCommand(t *testing.T) {
	base := catalogArgs(t)
	out := mustRun(t, append([]string{"check", "建議使用 LX-10"}, base...)...)
	if out["blocked"] != false {
		t.Fatalf("known model must pass: %v", out)
	}

	out = mustRun(t, append([]string{"check", "推薦 LX-10 或 ZX-900", "--allow", "LX-10"}, base...)...)
	if out["blocked"] != true {
		t.Fatalf("expected block: %v", out)
	}
	if diff := cmp.Diff([]string{"ZX-900"}, strs(out["bad_models"])); diff != "" {
		t.Fatalf("unexpected bad models (-want +got):\n%s", diff)
	}
}

func TestCardsImportRequiresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	_, err := run(t, append([]string{"cards", "import", "cards.json"}, catalogArgs(t)...)...)
	if err == nil || !strings.Contains(err.Error(), "POSTGRES_DSN") {
		t.Fatalf("expected missing dsn error, got %v", err)
	}
}

func TestResolveRequiresArgument(t *testing.T) {
	if _, err := run(t, append([]string{"resolve"}, catalogArgs(t)...)...); err == nil {
		t.Fatalf("expected argument error")
	}
}
