package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fedimesh/qkvc/logging"
)

// ReloadCallback is invoked with the freshly reloaded config after a
// watched file changes.
type ReloadCallback func(*Config) error

// Watcher watches a config file for changes and debounces reload
// callbacks, mirroring the teacher's ConfigWatcher.
type Watcher struct {
	path           string
	watcher        *fsnotify.Watcher
	mu             sync.Mutex
	callbacks      []ReloadCallback
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
}

// Watch starts watching path for changes and returns the Watcher. Call
// Stop to release the underlying fsnotify watcher.
func Watch(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:           path,
		watcher:        fw,
		debouncePeriod: 500 * time.Millisecond,
	}
	go w.loop()
	return w, nil
}

// OnReload registers a callback invoked after every debounced reload.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Stop releases the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	log := logging.Named("config")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			log.Debugw("config file changed", "path", event.Name, "op", event.Op.String())
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.reload)
}

func (w *Watcher) reload() {
	log := logging.Named("config")

	Reset()
	cfg, err := Load()
	if err != nil {
		log.Errorw("config reload failed", "error", err)
		return
	}

	w.mu.Lock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			log.Warnw("config reload callback error", "error", err)
		}
	}
}
