// Package inbox watches a directory and ingests image files dropped into it.
//
// Files are ingested by copy into the root folder once they have been quiet
// for the debounce interval, so a file still being written is picked up only
// after the writer finishes. The user's file is left where it is.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"folio/internal/database"
	"folio/internal/logging"
	"folio/internal/media"
	"folio/internal/metrics"
)

// DefaultDebounce is used when New is given a non-positive debounce.
const DefaultDebounce = 500 * time.Millisecond

// Ingester copies a file into the library.
type Ingester interface {
	Ingest(ctx context.Context, src string, folderID *string) (*database.Asset, error)
}

type fileState struct {
	size    int64
	modTime time.Time
}

// Watcher ingests new images appearing in a directory.
type Watcher struct {
	dir      string
	ingester Ingester
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu        sync.Mutex
	pending   map[string]time.Time
	processed map[string]fileState

	done    chan struct{}
	stopped chan struct{}
}

// New creates the inbox directory if needed and starts watching it. Events
// are not handled until Start is called.
func New(dir string, ingester Ingester, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create inbox directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:       filepath.Clean(dir),
		ingester:  ingester,
		debounce:  debounce,
		watcher:   fw,
		pending:   make(map[string]time.Time),
		processed: make(map[string]fileState),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start handles events until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	logging.Info("Watching inbox %s", w.dir)
	go w.run(ctx)
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	err := w.watcher.Close()
	<-w.stopped
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Inbox watcher error: %v", err)

		case <-ticker.C:
			for _, path := range w.ready(time.Now()) {
				w.ingest(ctx, path)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Dir(event.Name) != w.dir || strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
		delete(w.processed, event.Name)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.pending[event.Name] = time.Now()
		logging.Debug("Inbox event: %s on %s", event.Op, event.Name)
	}
}

// ready removes and returns the paths that have been quiet for the debounce
// interval.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var paths []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			paths = append(paths, path)
			delete(w.pending, path)
		}
	}
	return paths
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if !media.IsImagePath(path) {
		logging.Debug("Inbox skipping non-image %s", path)
		metrics.InboxEventsTotal.WithLabelValues("skipped").Inc()
		return
	}

	state := fileState{size: info.Size(), modTime: info.ModTime()}
	w.mu.Lock()
	prev, seen := w.processed[path]
	w.mu.Unlock()
	if seen && prev == state {
		return
	}

	asset, err := w.ingester.Ingest(ctx, path, nil)
	if err != nil {
		logging.Error("Inbox failed to ingest %s: %v", path, err)
		metrics.InboxEventsTotal.WithLabelValues("failed").Inc()
		return
	}

	w.mu.Lock()
	w.processed[path] = state
	w.mu.Unlock()

	logging.Info("Inbox ingested %s as %s", filepath.Base(path), asset.ID)
	metrics.InboxEventsTotal.WithLabelValues("ingested").Inc()
}
