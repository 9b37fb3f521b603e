package spec

import (
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hollandm/slurmherd/errors"
)

// DirWatcher watches a spec directory and reports newly created job
// description files after a debounce period. Rapid write bursts (an
// editor saving, a generator emitting many files) collapse into one
// callback carrying every pending path.
type DirWatcher struct {
	dir            string
	loader         *Loader
	watcher        *fsnotify.Watcher
	callbacks      []NewSpecsCallback
	mu             sync.Mutex
	pending        map[string]struct{}
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	logger         *zap.SugaredLogger
	done           chan struct{}
}

// NewSpecsCallback receives paths of new job description files,
// lexicographically ordered.
type NewSpecsCallback func(paths []string)

// NewDirWatcher creates a watcher on dir. Only files the loader accepts
// trigger callbacks. logger may be nil.
func NewDirWatcher(dir string, loader *Loader, debounce time.Duration, logger *zap.SugaredLogger) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "failed to watch spec directory %s", dir)
	}

	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	return &DirWatcher{
		dir:            dir,
		loader:         loader,
		watcher:        watcher,
		pending:        make(map[string]struct{}),
		debouncePeriod: debounce,
		logger:         logger,
		done:           make(chan struct{}),
	}, nil
}

// OnNewSpecs registers a callback for newly discovered job files
func (w *DirWatcher) OnNewSpecs(callback NewSpecsCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins watching for file events
func (w *DirWatcher) Start() {
	go w.watchLoop()
}

// watchLoop monitors file system events
func (w *DirWatcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only care about files appearing or finishing a write
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.loader.Accepts(event.Name) {
				continue
			}

			if w.logger != nil {
				w.logger.Debugw("Spec directory change detected",
					"file", event.Name,
					"op", event.Op.String(),
				)
			}
			w.schedule(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warnw("Spec watcher error", "error", err)
			}
		}
	}
}

// schedule adds a path to the pending set and (re)arms the debounce timer
func (w *DirWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.flush)
}

// flush delivers the pending paths to all callbacks
func (w *DirWatcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	callbacks := make([]NewSpecsCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	for _, callback := range callbacks {
		callback(paths)
	}
}

// Stop stops watching for file events
func (w *DirWatcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
