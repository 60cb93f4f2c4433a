package aliases

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeAliasFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeAliasFile(t, "aliases.json", `{"SRI-2000":["高速光譜儀"," ",3],"LX-10":"照度計","bad":{"x":1}}`)
	dict, err := NewFileLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if dict.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", dict.Len())
	}
}

func TestLoadYAML(t *testing.T) {
	body := "SRI-2000:\n  - 高速光譜儀\n  - 光譜儀\nLX-10: 照度計\n"
	dict, err := NewFileLoader(writeAliasFile(t, "aliases.yaml", body)).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if dict.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", dict.Len())
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	dict, err := NewFileLoader(filepath.Join(t.TempDir(), "none.json")).Load(context.Background())
	if err != nil || dict.Len() != 0 {
		t.Fatalf("expected empty dictionary, got %d err=%v", dict.Len(), err)
	}
}

func TestLoadMalformedFails(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"aliases.json", `["not","a","map"]`},
		{"aliases.yml", "- a\n- b\n"},
	} {
		if _, err := NewFileLoader(writeAliasFile(t, tc.name, tc.body)).Load(context.Background()); err == nil {
			t.Fatalf("%s: expected decode error", tc.name)
		}
	}
}
