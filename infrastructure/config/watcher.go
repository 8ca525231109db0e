package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const debounceDuration = 100 * time.Millisecond

// Watcher reloads the YAML config file when it changes. The log level is
// applied to the shared zap.AtomicLevel; other listeners get the new Config.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	level    zap.AtomicLevel
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewWatcher starts watching path. The directory is watched as well so
// editors that save by rename are picked up.
func NewWatcher(path string, current *Config, level zap.AtomicLevel, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		logger.Warn("Failed to watch config directory", zap.Error(err))
	}

	return &Watcher{
		path:    path,
		watcher: fw,
		level:   level,
		logger:  logger.With(zap.String("component", "config")),
		stopCh:  make(chan struct{}),
		current: current,
	}, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Configuration watcher stopped")
	})
}

// OnChange registers a callback for configuration changes
func (w *Watcher) OnChange(handler func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the last successfully loaded configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	w.logger.Info("Configuration file changed, reloading", zap.String("path", w.path))

	next := Defaults()
	if err := next.loadFile(w.path); err != nil {
		w.logger.Error("Failed to reload configuration", zap.Error(err))
		return
	}
	next.applyEnv()
	next.ConfigFile = w.path
	if err := next.Validate(); err != nil {
		w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.current
	w.current = next
	handlers := append([]func(*Config){}, w.onChange...)
	w.mu.Unlock()

	w.applyLogLevel(prev, next)
	for _, handler := range handlers {
		handler(next)
	}
}

func (w *Watcher) applyLogLevel(prev, next *Config) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(next.LogLevel)); err != nil {
		w.logger.Warn("Ignoring unknown log level", zap.String("logLevel", next.LogLevel))
		return
	}
	if prev != nil && prev.LogLevel == next.LogLevel {
		return
	}
	w.level.SetLevel(lvl)
	w.logger.Info("Log level changed", zap.String("logLevel", lvl.String()))
}
