package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports markdown files created or modified under a folder tree.
type Watcher struct {
	root     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *zap.Logger
}

// NewWatcher starts watching root and every non-hidden directory below it.
func NewWatcher(root string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{root: root, debounce: debounce, fsw: fsw, logger: logger}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Watch emits each changed markdown path once no event has arrived for the
// debounce interval. The channel is closed, and the watcher released, when
// ctx ends.
func (w *Watcher) Watch(ctx context.Context) <-chan string {
	out := make(chan string)
	go w.loop(ctx, out)
	return out
}

func (w *Watcher) loop(ctx context.Context, out chan<- string) {
	defer close(out)
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	var quiet <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if path, ok := w.handleEvent(ev); ok {
				pending[path] = struct{}{}
				quiet = time.After(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", zap.String("root", w.root), zap.Error(err))

		case <-quiet:
			quiet = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			for _, p := range paths {
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// handleEvent returns the markdown path an event concerns, if any. New
// directories are added to the watch list.
func (w *Watcher) handleEvent(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	if w.inHiddenDir(ev.Name) {
		return "", false
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		// gone again before we looked
		return "", false
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
			}
		}
		return "", false
	}
	if !info.Mode().IsRegular() || !isMarkdown(ev.Name) {
		return "", false
	}
	return ev.Name, true
}

func (w *Watcher) inHiddenDir(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if isHidden(part) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
