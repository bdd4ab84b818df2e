// Package watch reloads the pipeline when input state files change on disk.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before the
// handler runs.
const DefaultDebounce = 250 * time.Millisecond

// Handler receives the deduplicated, sorted paths that changed in one
// debounce window.
type Handler func(changed []string)

// Options configures a Watcher.
type Options struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// BufferSize bounds pending events; default 256.
	BufferSize int
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// Watcher watches the parent directories of a set of files, so editors that
// replace a file by rename are still seen, and reports changes to those
// files only.
type Watcher struct {
	fsw      *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	logger   *log.Logger

	mu    sync.RWMutex
	files map[string]struct{}
	dirs  map[string]int

	changes  chan string
	done     chan struct{}
	stopOnce sync.Once
	started  bool
}

// New creates a watcher for paths. Call Start to begin delivering changes.
func New(paths []string, handler Handler, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		handler:  handler,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]int),
		changes:  make(chan string, opts.BufferSize),
		done:     make(chan struct{}),
	}
	if err := w.SetFiles(paths); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// SetFiles replaces the watched file set. Directories no longer needed are
// removed from the underlying watcher. On error the previous set is kept.
func (w *Watcher) SetFiles(paths []string) error {
	files := make(map[string]struct{}, len(paths))
	dirs := make(map[string]int)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		files[abs] = struct{}{}
		dirs[filepath.Dir(abs)]++
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var added []string
	for dir := range dirs {
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			// Leave the previous set exactly as it was.
			for _, d := range added {
				_ = w.fsw.Remove(d)
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		added = append(added, dir)
	}
	for dir := range w.dirs {
		if _, ok := dirs[dir]; !ok {
			_ = w.fsw.Remove(dir)
		}
	}
	w.files = files
	w.dirs = dirs
	return nil
}

// Files returns the watched files, sorted.
func (w *Watcher) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) watched(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[filepath.Clean(path)]
	return ok
}

// Start begins delivering changes until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
}

// Stop closes the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.watched(event.Name) {
				continue
			}
			select {
			case w.changes <- filepath.Clean(event.Name):
			default:
				w.logger.Printf("[Watcher] event buffer full, dropping %s", event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("[Watcher] error: %v", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		sort.Strings(changed)
		pending = make(map[string]struct{})

		w.logger.Printf("[Watcher] %d input file(s) changed", len(changed))
		if w.handler != nil {
			w.handler(changed)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case path := <-w.changes:
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}
