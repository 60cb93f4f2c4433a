package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

type changeRecorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{fired: make(chan struct{}, 8)}
}

func (r *changeRecorder) onChange(_ context.Context, changed []string) {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *changeRecorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func startWatcher(t *testing.T, w *CatalogWatcher) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	// fsnotify registers watches synchronously inside Run; give it a moment.
	time.Sleep(100 * time.Millisecond)
	return cancel, done
}

func TestCatalogWatcherDebouncesBursts(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	rec := newChangeRecorder()
	isProduct := func(name string) bool { return strings.HasPrefix(name, "product_") && strings.HasSuffix(name, ".md") }
	w := NewCatalogWatcher([]Target{{Dir: dir, Match: isProduct}}, 150*time.Millisecond, rec.onChange, nil)
	cancel, done := startWatcher(t, w)

	for _, name := range []string{"product_LX-10.md", "product_SRI-2000.md", "notes.txt", ".product_X.md.123.tmp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case <-rec.fired:
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher never fired")
	}
	time.Sleep(300 * time.Millisecond)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := [][]string{{"product_LX-10.md", "product_SRI-2000.md"}}
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Fatalf("unexpected triggers (-want +got):\n%s", diff)
	}
}

func TestCatalogWatcherMissingDirFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := NewCatalogWatcher([]Target{{Dir: filepath.Join(t.TempDir(), "none")}}, time.Millisecond, func(context.Context, []string) {}, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestMergeTargetsCombinesMatchers(t *testing.T) {
	dir := t.TempDir()
	targets := mergeTargets([]Target{
		FileMatch(filepath.Join(dir, "company_info.md")),
		FileMatch(filepath.Join(dir, "aliases.json")),
		{Dir: " "},
	})
	if len(targets) != 1 {
		t.Fatalf("expected one merged target, got %d", len(targets))
	}
	m := targets[0].Match
	if !m("company_info.md") || !m("aliases.json") || m("other.md") {
		t.Fatalf("merged matcher is wrong")
	}
}
