// Package watch reports changes below the module root while the server runs.
// Module loading is one-shot, so a change only produces a modules.changed
// event and a log line asking for a restart.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/nfrund/modfinder/internal/pubsub"
)

// Watcher watches a module root and every directory below it.
type Watcher struct {
	root      string
	publisher pubsub.Publisher

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	active  bool
}

// New creates a watcher for root publishing to publisher.
func New(root string, publisher pubsub.Publisher) *Watcher {
	return &Watcher{root: root, publisher: publisher}
}

// Start begins watching. It returns immediately; events are handled until ctx
// is cancelled or Stop is called. A missing root is not an error.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active {
		slog.Debug("Module watcher already active")
		return nil
	}

	if _, err := os.Stat(w.root); os.IsNotExist(err) {
		slog.Debug("Module root does not exist, skipping watcher setup", "path", w.root)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}

	if err := addTree(watcher, w.root); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to add directories to watcher: %w", err)
	}

	w.watcher = watcher
	w.active = true
	go w.run(ctx, watcher)

	slog.Info("Watching module root for changes", "path", w.root)
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	w.active = false
	return err
}

func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return err
		}
		slog.Debug("Added directory to watcher", "path", path)
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer func() {
		w.Stop()
		slog.Info("Module watcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Module watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(watcher, event.Name); err != nil {
				slog.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	module := moduleOf(w.root, event.Name)
	slog.Warn("Module files changed, restart to apply", "module", module, "path", event.Name, "op", event.Op.String())

	err := w.publisher.Publish(ctx, pubsub.Message{
		Topic: pubsub.TopicModulesChanged,
		Metadata: map[string]string{
			pubsub.MetaModule: module,
			pubsub.MetaPath:   event.Name,
			pubsub.MetaOp:     event.Op.String(),
		},
	})
	if err != nil {
		slog.Error("Failed to publish module change", "path", event.Name, "error", err)
	}
}

// moduleOf returns the module directory name that path lives in, or "" for the
// root itself.
func moduleOf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
}
