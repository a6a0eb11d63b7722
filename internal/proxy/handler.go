package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/proxykit/reverseproxy/internal/backend"
	"github.com/proxykit/reverseproxy/internal/circuitbreaker"
	"github.com/proxykit/reverseproxy/internal/metrics"
	"github.com/proxykit/reverseproxy/internal/middleware"
	"github.com/proxykit/reverseproxy/internal/pool"
	"github.com/proxykit/reverseproxy/internal/session"
	"github.com/proxykit/reverseproxy/internal/strategy"
)

// Handler routes incoming requests to a backend: sticky session first when
// enabled, then the configured strategy over the healthy, breaker-admitted
// backends. A transport error triggers a single failover to another backend.
type Handler struct {
	logger    *slog.Logger
	pool      *pool.ServerPool
	strategy  strategy.Strategy
	sessions  *session.Manager // nil when sticky sessions are disabled
	breakers  *circuitbreaker.Registry
	collector *metrics.Collector // nil when metrics are disabled
}

func NewHandler(
	logger *slog.Logger,
	p *pool.ServerPool,
	strat strategy.Strategy,
	sessions *session.Manager,
	breakers *circuitbreaker.Registry,
	collector *metrics.Collector,
) *Handler {
	return &Handler{
		logger:    logger,
		pool:      p,
		strategy:  strat,
		sessions:  sessions,
		breakers:  breakers,
		collector: collector,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, keeping
// flush and hijack working for streamed upstream responses.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

type retryMarker struct{}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := session.ClientIP(r)

	h.logger.Info("Received request",
		slog.String("request_id", middleware.RequestIDFrom(r.Context())),
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("host", r.Host))

	chosen, pinned := h.pickBackend(r)
	if chosen == nil {
		h.logger.Warn("No healthy backends available", slog.String("client", clientIP))
		h.respondUnavailable(w)
		return
	}

	if h.sessions != nil && !pinned {
		h.sessions.Pin(w, r, chosen)
	}

	h.emit(metrics.Event{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now(),
		Backend:   chosen.URL().String(),
	})
	h.emit(metrics.Event{
		Type:      metrics.EventBackendSelected,
		Timestamp: time.Now(),
		Backend:   chosen.URL().String(),
	})

	h.forward(w, r, chosen)
}

// pickBackend honors an existing sticky session if its backend still admits
// traffic, then falls back to the strategy. The second return value reports
// whether the backend came from an existing session.
func (h *Handler) pickBackend(r *http.Request) (*backend.Backend, bool) {
	if h.sessions != nil {
		if pinned := h.sessions.Lookup(r); pinned != nil {
			if h.breakers.Breaker(pinned.URL().String()).Allow() {
				return pinned, true
			}
		}
	}

	return h.selectBackend(nil), false
}

// selectBackend runs the strategy over the healthy backends whose breakers
// admit traffic, optionally excluding one backend that just failed.
func (h *Handler) selectBackend(exclude *backend.Backend) *backend.Backend {
	healthy := h.pool.Healthy()
	candidates := make([]*backend.Backend, 0, len(healthy))

	for _, b := range healthy {
		if b == exclude {
			continue
		}
		if !h.breakers.Breaker(b.URL().String()).Allow() {
			continue
		}
		candidates = append(candidates, b)
	}

	return h.strategy.SelectBackend(candidates)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, b *backend.Backend) {
	b.IncrementConn()
	defer b.DecrementConn()

	h.logger.Info("Forwarding to backend",
		slog.String("request_id", middleware.RequestIDFrom(r.Context())),
		slog.String("backend", b.URL().String()))

	w.Header().Set("X-Backend-Server", b.URL().String())

	start := time.Now()
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

	// Shallow copy so the failover error handler can be attached per
	// request while the backend keeps one shared Director.
	var transportErr bool
	rp := *b.ReverseProxy()
	rp.ErrorHandler = func(ew http.ResponseWriter, er *http.Request, err error) {
		transportErr = true
		h.handleProxyError(ew, er, b, err)
	}
	rp.ServeHTTP(wrapped, r)

	if transportErr {
		// The failover path has already answered the client and recorded
		// the outcome against whichever backend served it.
		return
	}

	duration := time.Since(start)
	breaker := h.breakers.Breaker(b.URL().String())
	if wrapped.statusCode < http.StatusInternalServerError {
		breaker.RecordSuccess()
	}

	h.emit(metrics.Event{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Backend:    b.URL().String(),
		Method:     r.Method,
		StatusCode: wrapped.statusCode,
		Duration:   duration,
	})
}

// handleProxyError runs when the transport to the chosen backend failed
// before any bytes were written. The backend is demoted and the request is
// retried once on another backend.
func (h *Handler) handleProxyError(w http.ResponseWriter, r *http.Request, failed *backend.Backend, err error) {
	h.logger.Warn("Backend request failed",
		slog.String("backend", failed.URL().String()),
		slog.Any("err", err))

	h.breakers.Breaker(failed.URL().String()).RecordFailure()
	failed.SetHealthy(false)
	h.emit(metrics.Event{
		Type:      metrics.EventHealthChanged,
		Timestamp: time.Now(),
		Backend:   failed.URL().String(),
		Healthy:   false,
	})

	if h.sessions != nil {
		h.sessions.Evict(failed)
	}

	if r.Context().Value(retryMarker{}) != nil {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	next := h.selectBackend(failed)
	if next == nil {
		h.respondUnavailable(w)
		return
	}

	h.logger.Info("Retrying with different backend",
		slog.String("backend", next.URL().String()))
	h.emit(metrics.Event{
		Type:      metrics.EventFailover,
		Timestamp: time.Now(),
		Backend:   next.URL().String(),
	})

	retry := r.WithContext(context.WithValue(r.Context(), retryMarker{}, true))
	h.forward(w, retry, next)
}

func (h *Handler) respondUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)

	json.NewEncoder(w).Encode(map[string]any{
		"error":   "Service Unavailable",
		"message": "No backend servers are currently available",
		"time":    time.Now().Format(time.RFC3339),
		"backends_status": map[string]int{
			"total":   h.pool.Count(),
			"healthy": h.pool.CountHealthy(),
		},
	})
}

func (h *Handler) emit(event metrics.Event) {
	if h.collector == nil {
		return
	}
	h.collector.Emit(event)
}
