// Package shutdown runs the cleanup hooks of a graceful exit.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds the whole cleanup run.
const DefaultTimeout = 5 * time.Second

type hook struct {
	name string
	fn   func(context.Context) error
}

// Manager holds cleanup hooks. They run in reverse registration order.
type Manager struct {
	mu      sync.Mutex
	hooks   []hook
	timeout time.Duration
	log     *slog.Logger

	once sync.Once
	err  error
}

// New creates a manager whose Shutdown gives up after timeout.
func New(timeout time.Duration, log *slog.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{timeout: timeout, log: log}
}

// Register adds a cleanup hook.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// Shutdown runs every hook once, LIFO, and returns their joined errors.
// Later calls return the first result.
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		m.mu.Lock()
		hooks := append([]hook(nil), m.hooks...)
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			h := hooks[i]
			if err := h.fn(ctx); err != nil {
				m.log.Warn("cleanup hook failed", "hook", h.name, "error", err.Error())
				errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
				continue
			}
			m.log.Debug("cleanup hook done", "hook", h.name)
		}
		m.err = errors.Join(errs...)
	})
	return m.err
}

// CloseResource adapts an io.Closer style resource to a hook.
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(context.Context) error {
		return closer.Close()
	}
}

// WaitIdle returns a hook that polls idle until it reports true or the
// shutdown deadline passes.
func WaitIdle(idle func() bool, poll time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		for {
			if idle() {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("still busy: %w", ctx.Err())
			case <-ticker.C:
			}
		}
	}
}
