package healthcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/proxykit/reverseproxy/internal/backend"
)

// Monitor runs one Watch goroutine per backend and keeps the cancel handle
// so the watcher stops when the backend leaves the pool. Keyed by URL, so
// re-adding an address replaces its watcher instead of stacking a second one.
type Monitor struct {
	ctx      context.Context
	interval time.Duration
	logger   *slog.Logger
	onChange OnChange

	mutex   sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewMonitor(ctx context.Context, interval time.Duration, logger *slog.Logger, onChange OnChange) *Monitor {
	return &Monitor{
		ctx:      ctx,
		interval: interval,
		logger:   logger,
		onChange: onChange,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start launches a watcher for the backend. A watcher still running for the
// same URL is cancelled first.
func (m *Monitor) Start(b *backend.Backend) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := b.URL().String()
	if cancel, ok := m.cancels[key]; ok {
		cancel()
	}

	watchCtx, cancel := context.WithCancel(m.ctx)
	m.cancels[key] = cancel

	go Watch(watchCtx, b, m.interval, m.logger, m.onChange)
}

// Stop cancels the watcher for the backend, if one is running.
func (m *Monitor) Stop(b *backend.Backend) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := b.URL().String()
	if cancel, ok := m.cancels[key]; ok {
		cancel()
		delete(m.cancels, key)
	}
}
