package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads the config file so entry-point records can change
// without a restart. Reload is best-effort: a broken file keeps the last
// good configuration.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	mu      sync.Mutex
	started bool

	// debounce collapses the editor write bursts fsnotify reports.
	debounce time.Duration
}

// NewWatcher creates a watcher over path. onChange receives each
// successfully reloaded configuration.
func NewWatcher(path string, onChange func(*Config), logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		debounce: 200 * time.Millisecond,
	}, nil
}

// Start begins watching. Watching the directory rather than the file keeps
// the watch alive across the rename-replace pattern editors and config
// mounts use.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.started = true
	go w.loop()
	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	close(w.stopCh)
	_ = w.watcher.Close()
	w.started = false
}

func (w *Watcher) loop() {
	var timer *time.Timer
	reload := func() {
		cfg, err := LoadFile(w.path)
		if err != nil {
			w.logger.Warn("Config reload failed, keeping previous configuration",
				zap.String("path", w.path),
				zap.Error(err))
			return
		}
		w.logger.Info("Configuration reloaded", zap.String("path", w.path))
		w.onChange(cfg)
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		case <-w.stopCh:
			return
		}
	}
}
