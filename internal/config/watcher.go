package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/roach88/eagraph/internal/governance"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// PolicySink receives policy changes. *gate.Gate implements it.
type PolicySink interface {
	SetPolicy(governance.Policy)
}

// Watcher reloads a config file when it changes and notifies callbacks.
// An invalid file is logged and ignored; the last good config stays current.
type Watcher struct {
	path      string
	logger    *zap.Logger
	debounce  time.Duration
	fsw       *fsnotify.Watcher
	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	reloads   sync.WaitGroup

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	timer     *time.Timer
	closed    bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatchLogger sets the logger. Default is zap.NewNop().
func WithWatchLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce sets the reload delay. Default is DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher starts watching path. initial is the config already loaded
// from it.
func NewWatcher(path string, initial *Config, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	w := &Watcher{
		path:     abs,
		logger:   zap.NewNop(),
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		config:   initial,
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: editors often replace the file rather than
	// write it in place.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	w.fsw = fsw

	go w.watchLoop()
	w.logger.Info("config watcher started", zap.String("path", abs))
	return w, nil
}

// Current returns the last valid config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnChange registers fn to run after every successful reload that changes
// the config.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// PushPolicy forwards governance changes to sink.
func (w *Watcher) PushPolicy(sink PolicySink) {
	last := w.Current().Policy()
	var mu sync.Mutex
	w.OnChange(func(c *Config) {
		mu.Lock()
		defer mu.Unlock()
		p := c.Policy()
		if p == last {
			return
		}
		last = p
		sink.SetPolicy(p)
	})
}

// Close stops the watcher and waits for its goroutine and any reload in
// flight. No callback runs after Close returns.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.stopCh)
		<-w.done
		w.mu.Lock()
		w.closed = true
		w.stopTimer()
		w.mu.Unlock()
		w.reloads.Wait()
	})
	return nil
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	defer w.fsw.Close()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("config file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()))
			w.schedule()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))

		case <-w.stopCh:
			w.logger.Info("config watcher stopped", zap.String("path", w.path))
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.stopTimer()
	w.reloads.Add(1)
	w.timer = time.AfterFunc(w.debounce, func() {
		defer w.reloads.Done()
		w.reload()
	})
}

// stopTimer cancels a pending reload. Callers hold mu.
func (w *Watcher) stopTimer() {
	if w.timer != nil && w.timer.Stop() {
		w.reloads.Done()
	}
	w.timer = nil
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	next, err := Load(w.path)
	if err != nil {
		w.logger.Error("invalid configuration after reload", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.config
	if reflect.DeepEqual(prev, next) {
		w.mu.Unlock()
		w.logger.Debug("configuration unchanged after reload")
		return
	}
	w.config = next
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	if prev == nil || prev.Governance != next.Governance {
		w.logger.Info("governance policy changed",
			zap.String("mode", next.Governance.Mode),
			zap.String("lifecycleCoverage", next.Governance.LifecycleCoverage))
	}
	for _, fn := range callbacks {
		fn(next)
	}
	w.logger.Info("configuration reloaded", zap.Int("callbacks_notified", len(callbacks)))
}
