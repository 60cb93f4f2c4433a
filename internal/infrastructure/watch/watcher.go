// Package watch turns file system activity under the data directories into
// debounced reload triggers.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Target is one directory and the file names in it that matter. A nil
// Match accepts every visible file.
type Target struct {
	Dir   string
	Match func(name string) bool
}

// CatalogWatcher collects changes and calls onChange once the directories
// have been quiet for the debounce window.
type CatalogWatcher struct {
	targets  []Target
	debounce time.Duration
	onChange func(ctx context.Context, changed []string)
	logger   *slog.Logger
}

func NewCatalogWatcher(targets []Target, debounce time.Duration, onChange func(context.Context, []string), logger *slog.Logger) *CatalogWatcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogWatcher{targets: mergeTargets(targets), debounce: debounce, onChange: onChange, logger: logger}
}

// Run blocks until ctx is done.
func (w *CatalogWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, t := range w.targets {
		if err := watcher.Add(t.Dir); err != nil {
			return fmt.Errorf("watch %s: %w", t.Dir, err)
		}
		w.logger.Info("watch_started", "dir", t.Dir)
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending[filepath.Base(event.Name)] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch_error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			sort.Strings(changed)
			pending = make(map[string]struct{})
			w.logger.Info("watch_triggered", "files", changed)
			w.onChange(ctx, changed)
		}
	}
}

func (w *CatalogWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, "~") {
		return false
	}
	dir := filepath.Clean(filepath.Dir(event.Name))
	for _, t := range w.targets {
		if t.Dir == dir && (t.Match == nil || t.Match(name)) {
			return true
		}
	}
	return false
}

// mergeTargets cleans directory paths and combines matchers of targets that
// share a directory.
func mergeTargets(targets []Target) []Target {
	out := make([]Target, 0, len(targets))
	index := make(map[string]int, len(targets))
	for _, t := range targets {
		if strings.TrimSpace(t.Dir) == "" {
			continue
		}
		t.Dir = filepath.Clean(t.Dir)
		i, ok := index[t.Dir]
		if !ok {
			index[t.Dir] = len(out)
			out = append(out, t)
			continue
		}
		prev := out[i].Match
		next := t.Match
		if prev == nil || next == nil {
			out[i].Match = nil
			continue
		}
		out[i].Match = func(name string) bool { return prev(name) || next(name) }
	}
	return out
}

// FileMatch accepts one exact file name.
func FileMatch(path string) Target {
	base := filepath.Base(path)
	return Target{
		Dir:   filepath.Dir(path),
		Match: func(name string) bool { return name == base },
	}
}
