// Package filesystem ingests documents dropped into a watched directory.
//
// The Watcher follows a directory tree with fsnotify. Create and write
// events for supported files are collected and, once the tree has been
// quiet for the debounce interval, each changed file is passed to the
// ingestion service in path order.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driving"
	"github.com/custodia-labs/finrag/internal/core/services"
	"github.com/custodia-labs/finrag/internal/logger"
)

// DefaultDebounce is how long the tree must be quiet before pending files
// are ingested. Editors often write a file several times in a burst.
const DefaultDebounce = 500 * time.Millisecond

// ResultFunc receives the outcome of each ingested file.
type ResultFunc func(path string, ids []string, err error)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before ingesting.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchIngestOptions sets the options passed to every ingest.
func WithWatchIngestOptions(opts domain.IngestOptions) WatcherOption {
	return func(w *Watcher) {
		w.opts = opts
	}
}

// WithResultHandler registers a callback invoked after each file.
func WithResultHandler(fn ResultFunc) WatcherOption {
	return func(w *Watcher) {
		w.onResult = fn
	}
}

// Watcher ingests files created or modified under a root directory.
type Watcher struct {
	root      string
	ingestion driving.IngestionService
	debounce  time.Duration
	opts      domain.IngestOptions
	onResult  ResultFunc

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	running bool
}

// NewWatcher creates a watcher for root.
func NewWatcher(root string, ingestion driving.IngestionService, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:      filepath.Clean(root),
		ingestion: ingestion,
		debounce:  DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Scan ingests every supported file already under root.
func (w *Watcher) Scan(ctx context.Context) (*domain.BatchReport, error) {
	var paths []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if w.hidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && services.IsSupportedFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", w.root, err)
	}

	logger.Debug("scan found %d supported files under %s", len(paths), w.root)
	return w.ingestion.ProcessDocuments(ctx, paths, w.opts)
}

// Run watches the tree until ctx is cancelled. Files still pending when
// ctx ends are not ingested.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.fsw = fsw
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.fsw = nil
		w.mu.Unlock()
	}()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	logger.Info("watching %s", w.root)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.handleFsEvent(event); ok {
				pending[path] = struct{}{}
				timer.Reset(w.debounce)
				fire = timer.C
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)

		case <-fire:
			fire = nil
			w.flush(ctx, pending)
			pending = make(map[string]struct{})
		}
	}
}

// handleFsEvent decides whether an event names a file to ingest. New
// directories are added to the watch list.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (string, bool) {
	if w.hidden(event.Name) {
		return "", false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Removed again before we looked.
		return "", false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(event.Name); err != nil {
				logger.Warn("watch %s: %v", event.Name, err)
			}
		}
		return "", false
	}
	if !services.IsSupportedFile(event.Name) {
		logger.Debug("ignoring unsupported file %s", event.Name)
		return "", false
	}
	return event.Name, true
}

// flush ingests pending files one after another.
func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		ids, err := w.ingestion.ProcessDocument(ctx, path, w.opts)
		if err != nil {
			logger.Warn("ingest %s: %v", path, err)
		} else {
			logger.Info("ingested %s: %d chunks", path, len(ids))
		}
		if w.onResult != nil {
			w.onResult(path, ids, err)
		}
	}
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.hidden(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// hidden reports whether path is hidden relative to the watched root.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return isHidden(path)
	}
	return isHidden(rel)
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
