package fs

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ctxopt/internal/logging"
)

const debounceInterval = 50 * time.Millisecond

// Watcher reports changed files under a root. Directories the walker
// excludes are not watched, and bursts of events for one file within
// debounceInterval are reported once.
type Watcher struct {
	fw     *fsnotify.Watcher
	walker *Walker
	logger *slog.Logger

	done    chan struct{}
	mu      sync.Mutex
	stopped bool
}

func NewWatcher(walker *Walker, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if walker == nil {
		walker = NewWalker(nil, nil)
	}
	return &Watcher{
		fw:     fw,
		walker: walker,
		logger: logging.OrDiscard(logger).With("component", "watcher"),
		done:   make(chan struct{}),
	}, nil
}

// Watch starts monitoring root recursively. onChange receives the absolute
// path of every written, created, removed or renamed file.
func (w *Watcher) Watch(root string, onChange func(path string)) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.excludedDir(root, path) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
	if err != nil {
		return err
	}

	go w.loop(root, onChange)
	return nil
}

func (w *Watcher) loop(root string, onChange func(string)) {
	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			path := event.Name

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					if !w.excludedDir(root, path) {
						_ = w.fw.Add(path)
					}
					continue
				}
			}
			if w.excludedFile(root, path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			now := time.Now()
			if t, seen := last[path]; seen && now.Sub(t) < debounceInterval {
				continue
			}
			last[path] = now
			onChange(path)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) excludedDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	return w.walker.Excluded(filepath.ToSlash(rel) + "/")
}

func (w *Watcher) excludedFile(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	return !w.walker.Included(rel) || w.walker.Excluded(rel)
}

// Stop ends monitoring. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}
