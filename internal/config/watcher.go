package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chatpanel/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a config file whenever it changes on disk and publishes
// every successfully validated result on Updates().
// It watches the parent directory so editors that save via rename are seen too.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	updates     chan *Config
	debounceDur time.Duration
	lastEvent   time.Time
	dirty       bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	transform   func(*Config)
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithTransform runs fn on every reloaded config before it is validated.
// Use it to re-apply overrides that do not live in the file, such as
// command-line flags.
func WithTransform(fn func(*Config)) WatcherOption {
	return func(w *Watcher) { w.transform = fn }
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:     fw,
		path:        abs,
		updates:     make(chan *Config),
		debounceDur: 200 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Updates delivers reloaded configs. It is never closed; select on it alongside Stop.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Start begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryConfig).Warn("config watcher: failed to create dir", zap.String("dir", dir), zap.Error(err))
	}
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.Get(logging.CategoryConfig).Info("config watcher started", zap.String("path", w.path))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		close(w.stopCh)
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("config watcher: close failed", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("config watcher error", zap.Error(err))

		case <-ticker.C:
			if w.settled() {
				if cfg := w.reload(); cfg != nil {
					select {
					case w.updates <- cfg:
					case <-w.stopCh:
						return
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.dirty = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

// settled reports (and clears) a pending change once the debounce window has passed.
func (w *Watcher) settled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirty || time.Since(w.lastEvent) < w.debounceDur {
		return false
	}
	w.dirty = false
	return true
}

func (w *Watcher) reload() *Config {
	log := logging.Get(logging.CategoryConfig)

	if _, err := os.Stat(w.path); err != nil {
		log.Debug("config file gone, keeping current settings", zap.String("path", w.path))
		return nil
	}
	cfg, err := Load(w.path)
	if err != nil {
		log.Warn("config reload failed", zap.Error(err))
		return nil
	}
	if w.transform != nil {
		w.transform(cfg)
	}
	if err := cfg.Validate(); err != nil {
		log.Warn("reloaded config rejected", zap.Error(err))
		return nil
	}
	log.Info("config reloaded",
		zap.String("endpoint", cfg.Service.Endpoint),
		zap.String("model", cfg.Service.ModelName))
	return cfg
}
