// Package fswatch reports writes to a fixed set of files.
package fswatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/VersBinarii/thesamo/internal/utils"
	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 200 * time.Millisecond

var (
	ErrWatcherClosed = errors.New("watcher closed")
	ErrDirNotExist   = errors.New("directory to watch does not exist")
)

// Watcher watches the parent directories of its files, so that editors that
// replace a file by rename are still seen. Events for other entries of those
// directories are discarded.
type Watcher struct {
	// Changes receives the path of every changed file, at most once per
	// debounce window.
	Changes chan string
	Errors  chan error

	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration

	mu       sync.Mutex
	isClosed bool
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// New watches paths. Every parent directory must exist.
func New(paths []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}

	w := &Watcher{
		Changes:  make(chan string, 16),
		Errors:   make(chan error, 16),
		watcher:  fw,
		files:    make(map[string]struct{}, len(paths)),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if !utils.DirExists(dir) {
			fw.Close()
			return nil, fmt.Errorf("%w: %s", ErrDirNotExist, dir)
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("fsnotify add watch %s: %w", dir, err)
		}
		slog.Debug("watcher add", "dir", dir)
	}

	return w, nil
}

// Start forwards changes until ctx is done or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return ErrWatcherClosed
			}
			if !w.relevant(event) {
				continue
			}
			if len(pending) == 0 {
				timer.Reset(w.debounce)
			}
			pending[filepath.Clean(event.Name)] = struct{}{}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.handleError(err)

		case <-timer.C:
			for path := range pending {
				w.emit(path)
			}
			clear(pending)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isClosed {
		return ErrWatcherClosed
	}
	w.isClosed = true
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	_, ok := w.files[filepath.Clean(event.Name)]
	return ok
}

func (w *Watcher) emit(path string) {
	select {
	case w.Changes <- path:
	default:
		slog.Warn("dropped change: channel full", "path", path)
	}
}

func (w *Watcher) handleError(err error) {
	select {
	case w.Errors <- err:
	default:
		slog.Warn("dropped error: errors channel full", "error", err)
	}
}
