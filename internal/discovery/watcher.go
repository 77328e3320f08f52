package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"quicklaunch/internal/config"
	"quicklaunch/internal/logging"
)

// WatchConfig holds watcher configuration.
type WatchConfig struct {
	DebounceMs int
	MaxWatches int
}

// ChangeHandler receives the paths that changed once they settled.
type ChangeHandler func(paths []string)

// Watcher monitors the search directories and reports settled changes.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	maxWatches int
	onChange   ChangeHandler
	pending    map[string]time.Time
	mu         sync.Mutex
	done       chan struct{}
	running    bool
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewWatcher creates a watcher. Call Start to begin watching dirs.
func NewWatcher(cfg WatchConfig) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceMs := cfg.DebounceMs
	if debounceMs <= 0 {
		debounceMs = config.DefaultDebounceMs
	}
	maxWatches := cfg.MaxWatches
	if maxWatches <= 0 {
		maxWatches = config.DefaultMaxWatches
	}

	return &Watcher{
		fsWatcher:  fsWatcher,
		debounce:   time.Duration(debounceMs) * time.Millisecond,
		maxWatches: maxWatches,
		pending:    make(map[string]time.Time),
		done:       make(chan struct{}),
	}, nil
}

// SetOnChange sets the callback for settled changes.
func (w *Watcher) SetOnChange(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = handler
}

// Start begins watching dirs.
func (w *Watcher) Start(dirs []string) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.Watch(dirs)

	w.wg.Add(2)
	go w.processEvents()
	go w.processDebounce()
	return nil
}

// Watch replaces the watched directories with dirs and their
// non-bundle subdirectories, up to the watch limit.
func (w *Watcher) Watch(dirs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range w.fsWatcher.WatchList() {
		_ = w.fsWatcher.Remove(p)
	}

	count := 0
	for _, dir := range dirs {
		_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if count >= w.maxWatches {
				return filepath.SkipAll
			}
			if p != dir && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if err := w.fsWatcher.Add(p); err != nil {
				logging.Debug("cannot watch directory", "dir", p, "error", err)
				return nil
			}
			count++
			return nil
		})
	}
	logging.Debug("watching search directories", "dirs", len(dirs), "watches", count)
}

// skipDir reports whether a directory should not be watched: hidden
// entries and application bundles, whose contents are not scanned.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.EqualFold(filepath.Ext(name), ".app")
}

// Stop stops watching for changes.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.fsWatcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	w.stopOnce.Do(func() {
		close(w.done)
	})
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Warn("search directory watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return
	}

	// New plain directories may hold bundles later.
	if event.Has(fsnotify.Create) && !skipDir(base) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.mu.Lock()
			if len(w.fsWatcher.WatchList()) < w.maxWatches {
				_ = w.fsWatcher.Add(path)
			}
			w.mu.Unlock()
		}
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDebounce() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending reports the pending paths once none changed for a full
// debounce window, so a burst of events yields one callback.
func (w *Watcher) flushPending() {
	w.mu.Lock()
	handler := w.onChange
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}

	now := time.Now()
	for _, t := range w.pending {
		if now.Sub(t) < w.debounce {
			w.mu.Unlock()
			return
		}
	}

	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]time.Time)
	w.mu.Unlock()

	if handler == nil {
		return
	}
	sort.Strings(paths)
	handler(paths)
}

// WatchedPaths returns the number of watched directories.
func (w *Watcher) WatchedPaths() int {
	return len(w.fsWatcher.WatchList())
}
