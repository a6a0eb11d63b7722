package backend

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
)

// Backend is a single upstream server in the pool. It tracks health status
// and active connections, and owns the reverse proxy used to forward
// requests to it.
type Backend struct {
	url    *url.URL
	weight int
	proxy  *httputil.ReverseProxy

	mutex             sync.Mutex
	healthy           bool
	activeConnections int
}

// New creates a Backend for the given URL. Weights below 1 are clamped to 1.
// The backend starts healthy; the health checker demotes it if the first
// probe fails.
func New(u *url.URL, weight int) *Backend {
	if weight < 1 {
		weight = 1
	}

	b := &Backend{
		url:     u,
		weight:  weight,
		healthy: true,
	}

	proxy := httputil.NewSingleHostReverseProxy(u)
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Header.Set("X-Forwarded-Host", req.Host)
		req.Header.Set("X-Forwarded-Proto", forwardedProto(req))
		req.Header.Set("X-Proxy-Server", "reverseproxy")
	}
	b.proxy = proxy

	return b
}

func forwardedProto(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

// ReverseProxy returns the HTTP reverse proxy for this backend.
func (b *Backend) ReverseProxy() *httputil.ReverseProxy {
	return b.proxy
}

// URL returns the backend server URL.
func (b *Backend) URL() *url.URL {
	return b.url
}

// Weight returns the configured selection weight.
func (b *Backend) Weight() int {
	return b.weight
}

// IncrementConn increments the active connection count.
func (b *Backend) IncrementConn() {
	b.mutex.Lock()
	b.activeConnections++
	b.mutex.Unlock()
}

// DecrementConn decrements the active connection count.
func (b *Backend) DecrementConn() {
	b.mutex.Lock()
	if b.activeConnections > 0 {
		b.activeConnections--
	}
	b.mutex.Unlock()
}

// ActiveConnections returns the current number of active connections.
func (b *Backend) ActiveConnections() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.activeConnections
}

// IsHealthy returns true if the backend is currently healthy.
func (b *Backend) IsHealthy() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.healthy
}

// SetHealthy updates the backend's health status.
// Returns true if the status changed, false if it was already in that state.
func (b *Backend) SetHealthy(healthy bool) (changed bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.healthy == healthy {
		return false
	}

	b.healthy = healthy
	return true
}
