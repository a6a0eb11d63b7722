package pool

import (
	"net/url"
	"sync"

	"github.com/proxykit/reverseproxy/internal/backend"
)

// ServerPool is the mutable set of backends the proxy balances across.
// Backends can be added and removed at runtime through the admin API.
type ServerPool struct {
	mutex    sync.RWMutex
	backends []*backend.Backend
}

func New() *ServerPool {
	return &ServerPool{}
}

// Add appends a backend to the pool.
func (p *ServerPool) Add(b *backend.Backend) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.backends = append(p.backends, b)
}

// Remove deletes the backend with the given URL.
// Returns false if no backend matches.
func (p *ServerPool) Remove(target *url.URL) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i, b := range p.backends {
		if b.URL().String() == target.String() {
			p.backends = append(p.backends[:i], p.backends[i+1:]...)
			return true
		}
	}

	return false
}

// Backends returns a snapshot of the pool. Callers may iterate it freely;
// concurrent Add/Remove calls do not affect the returned slice.
func (p *ServerPool) Backends() []*backend.Backend {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	snapshot := make([]*backend.Backend, len(p.backends))
	copy(snapshot, p.backends)
	return snapshot
}

// Healthy returns a snapshot containing only the healthy backends.
func (p *ServerPool) Healthy() []*backend.Backend {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	healthy := make([]*backend.Backend, 0, len(p.backends))
	for _, b := range p.backends {
		if b.IsHealthy() {
			healthy = append(healthy, b)
		}
	}

	return healthy
}

// ByURL returns the backend with the given URL, or nil.
func (p *ServerPool) ByURL(target *url.URL) *backend.Backend {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	for _, b := range p.backends {
		if b.URL().String() == target.String() {
			return b
		}
	}

	return nil
}

// Count returns the number of backends in the pool.
func (p *ServerPool) Count() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return len(p.backends)
}

// CountHealthy returns the number of healthy backends.
func (p *ServerPool) CountHealthy() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	count := 0
	for _, b := range p.backends {
		if b.IsHealthy() {
			count++
		}
	}

	return count
}
