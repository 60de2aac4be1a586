package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig controls how file changes are turned into reloads.
type WatcherConfig struct {
	// DebounceDuration collapses bursts of write events into one reload.
	DebounceDuration time.Duration
	// OnChange receives each successfully loaded configuration.
	OnChange func(newConfig *Config) error
	// OnError receives load and apply failures.
	OnError func(error)
}

func DefaultWatcherConfig() *WatcherConfig {
	return &WatcherConfig{DebounceDuration: 500 * time.Millisecond}
}

// Watcher reloads the configuration file whenever it changes on disk and
// hands validated results to the OnChange callback. A file that fails to
// load or validate is reported through OnError and never applied.
type Watcher struct {
	path    string
	config  *WatcherConfig
	fs      *fsnotify.Watcher
	logger  *slog.Logger
	mu      sync.Mutex
	pending *time.Timer
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewWatcher(configPath string, config *WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if config == nil {
		config = DefaultWatcherConfig()
	}

	path, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		path:   path,
		config: config,
		fs:     fs,
		logger: logger.With("component", "config-watcher"),
		stopCh: make(chan struct{}),
	}

	if err := fs.Add(path); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}

	// Editors that write via rename-into-place generate events on the
	// directory, not the watched file.
	if err := fs.Add(filepath.Dir(path)); err != nil {
		w.logger.Warn("Failed to watch config directory", "dir", filepath.Dir(path), "error", err)
	}

	return w, nil
}

func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("Configuration watcher started", "file", w.path)
}

func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	return w.fs.Close()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", "error", err)
			if w.config.OnError != nil {
				w.config.OnError(fmt.Errorf("watcher error: %w", err))
			}

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Name != w.path {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Write), event.Op.Has(fsnotify.Create):
		w.logger.Debug("Config file changed", "file", event.Name, "op", event.Op.String())
		w.scheduleReload()

	case event.Op.Has(fsnotify.Remove):
		w.logger.Warn("Config file removed", "file", event.Name)
		// Re-arm so a recreated file is picked up again.
		w.fs.Add(event.Name)

	case event.Op.Has(fsnotify.Rename):
		w.fs.Add(w.path)
		w.scheduleReload()
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.config.DebounceDuration, func() {
		if err := w.reload(); err != nil {
			w.logger.Error("Config reload failed", "error", err)
			if w.config.OnError != nil {
				w.config.OnError(err)
			}
		}
	})
}

func (w *Watcher) reload() error {
	w.logger.Info("Reloading configuration", "file", w.path)

	// Load validates; a broken file never reaches OnChange.
	newConfig, err := Load(w.path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if w.config.OnChange != nil {
		if err := w.config.OnChange(newConfig); err != nil {
			return fmt.Errorf("apply config: %w", err)
		}
	}

	w.logger.Info("Configuration reloaded")
	return nil
}
