package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ChangeHandler is invoked when syrup.yaml changes. It receives the
// refreshed viper instance and returns an error if it cannot handle the
// change.
type ChangeHandler func(v *viper.Viper) error

// Watcher monitors syrup.yaml via viper's fsnotify integration and notifies
// subscribed handlers on every edit, so a record or replay session can pick
// up a new shared-variable list between runs.
type Watcher struct {
	viper    *viper.Viper
	logger   *zap.Logger
	handlers map[string]ChangeHandler
	mu       sync.RWMutex
	watching bool
}

// NewWatcher wraps v, which must already be initialized with a config file
// (as returned by Load).
func NewWatcher(v *viper.Viper, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		viper:    v,
		logger:   logger,
		handlers: make(map[string]ChangeHandler),
	}
}

// Subscribe registers handler under id, replacing any existing handler with
// the same id. Safe for concurrent use.
func (w *Watcher) Subscribe(id string, handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = handler
	w.logger.Debug("config watcher: subscribed", zap.String("id", id))
}

// Unsubscribe removes the handler registered under id, if any.
func (w *Watcher) Unsubscribe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.handlers[id]; ok {
		delete(w.handlers, id)
		w.logger.Debug("config watcher: unsubscribed", zap.String("id", id))
	}
}

// Start begins watching the config file. Idempotent: calling it again is a
// no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return
	}
	w.watching = true
	w.mu.Unlock()

	w.viper.WatchConfig()
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.logger.Info("config file changed", zap.String("path", e.Name))

		w.mu.RLock()
		handlers := make(map[string]ChangeHandler, len(w.handlers))
		for id, h := range w.handlers {
			handlers[id] = h
		}
		w.mu.RUnlock()

		for id, handler := range handlers {
			if err := handler(w.viper); err != nil {
				w.logger.Error("config watcher: handler failed", zap.String("id", id), zap.Error(err))
				continue
			}
			w.logger.Debug("config watcher: handler applied change", zap.String("id", id))
		}
	})

	w.logger.Info("config watcher: started")
}

// Stop marks the watcher inactive. viper offers no way to unregister its
// fsnotify watch, so this only suppresses IsWatching; any in-flight
// OnConfigChange callback already wired keeps firing.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return
	}
	w.watching = false
	w.logger.Info("config watcher: stopped")
}

// IsWatching reports whether Start has been called without a matching Stop.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// HandlerCount returns the number of currently subscribed handlers.
func (w *Watcher) HandlerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.handlers)
}

// ReloadableSubscriber adapts a Reloadable component into a ChangeHandler
// that re-unmarshals the whole Config and forwards it.
type ReloadableSubscriber struct {
	component Reloadable
}

// NewReloadableSubscriber returns a subscriber that notifies component on
// every change.
func NewReloadableSubscriber(component Reloadable) *ReloadableSubscriber {
	return &ReloadableSubscriber{component: component}
}

// Handler returns the ChangeHandler to pass to Watcher.Subscribe.
func (rs *ReloadableSubscriber) Handler() ChangeHandler {
	return func(v *viper.Viper) error {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("config: unmarshal on reload: %w", err)
		}
		if err := rs.component.OnConfigChange(&cfg); err != nil {
			return fmt.Errorf("config: component rejected reload: %w", err)
		}
		return nil
	}
}
