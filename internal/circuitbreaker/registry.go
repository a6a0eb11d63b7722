package circuitbreaker

import (
	"sync"
	"time"
)

// Registry holds one breaker per backend URL, created lazily.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	threshold int
	timeout   time.Duration
}

func NewRegistry(threshold int, timeout time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
	}
}

func (r *Registry) Breaker(backendURL string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[backendURL]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it.
	if cb, exists = r.breakers[backendURL]; exists {
		return cb
	}

	cb = New(r.threshold, r.timeout)
	r.breakers[backendURL] = cb
	return cb
}

// States returns the current state of every known breaker, keyed by URL.
func (r *Registry) States() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for url, cb := range r.breakers {
		states[url] = cb.State()
	}
	return states
}
