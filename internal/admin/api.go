package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/proxykit/reverseproxy/config"
	"github.com/proxykit/reverseproxy/internal/backend"
	"github.com/proxykit/reverseproxy/internal/circuitbreaker"
	"github.com/proxykit/reverseproxy/internal/metrics"
	"github.com/proxykit/reverseproxy/internal/pool"
	"github.com/proxykit/reverseproxy/internal/session"
)

// API exposes the operational surface of the proxy on its own listener:
// pool status, runtime backend add/remove, configuration, session stats
// and prometheus metrics.
type API struct {
	logger    *slog.Logger
	cfg       *config.Config
	pool      *pool.ServerPool
	sessions  *session.Manager // nil when sticky sessions are disabled
	breakers  *circuitbreaker.Registry
	collector *metrics.Collector

	// onAdd starts supporting machinery (health checks) for backends
	// registered at runtime; onRemove tears it down again.
	onAdd    func(*backend.Backend)
	onRemove func(*backend.Backend)
}

func NewAPI(
	logger *slog.Logger,
	cfg *config.Config,
	p *pool.ServerPool,
	sessions *session.Manager,
	breakers *circuitbreaker.Registry,
	collector *metrics.Collector,
	onAdd func(*backend.Backend),
	onRemove func(*backend.Backend),
) *API {
	return &API{
		logger:    logger,
		cfg:       cfg,
		pool:      p,
		sessions:  sessions,
		breakers:  breakers,
		collector: collector,
		onAdd:     onAdd,
		onRemove:  onRemove,
	}
}

// Routes returns the admin mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", a.handleRoot)
	mux.HandleFunc("/status", a.handleStatus)
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/backends", a.handleBackends)
	mux.HandleFunc("/config", a.handleConfig)
	mux.HandleFunc("/sessions", a.handleSessions)

	if a.collector != nil {
		mux.Handle("/metrics", a.collector.Handler())
	}

	return mux
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documentation": "Reverse Proxy Admin API",
		"endpoints": map[string]string{
			"GET /status":      "Pool and strategy status",
			"GET /health":      "Health check summary and breaker states",
			"POST /backends":   "Add a backend (JSON: {\"url\": \"http://...\", \"weight\": 1})",
			"DELETE /backends": "Remove a backend (JSON: {\"url\": \"http://...\"})",
			"GET /config":      "Current configuration",
			"GET /sessions":    "Sticky session statistics",
			"GET /metrics":     "Prometheus metrics",
		},
		"features": map[string]bool{
			"sticky_sessions": a.sessions != nil,
		},
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	backends := a.pool.Backends()
	states := make([]map[string]any, 0, len(backends))
	for _, b := range backends {
		states = append(states, map[string]any{
			"url":                b.URL().String(),
			"healthy":            b.IsHealthy(),
			"weight":             b.Weight(),
			"active_connections": b.ActiveConnections(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"strategy":         a.cfg.Strategy.Type,
		"total_backends":   a.pool.Count(),
		"healthy_backends": a.pool.CountHealthy(),
		"backends":         states,
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	breakerStates := make(map[string]string)
	for url, state := range a.breakers.States() {
		breakerStates[url] = state.String()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"health_check_interval": a.cfg.HealthCheck.Interval,
		"total_backends":        a.pool.Count(),
		"healthy_backends":      a.pool.CountHealthy(),
		"circuit_breakers":      breakerStates,
	})
}

func (a *API) handleBackends(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.addBackend(w, r)
	case http.MethodDelete:
		a.removeBackend(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	backends := make([]map[string]any, 0, len(a.cfg.Backends))
	for _, b := range a.cfg.Backends {
		backends = append(backends, map[string]any{
			"url":    b.URL,
			"weight": b.Weight,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"server_address":        a.cfg.Server.Address,
		"admin_address":         a.cfg.Admin.Address,
		"strategy":              a.cfg.Strategy.Type,
		"health_check_interval": a.cfg.HealthCheck.Interval,
		"sticky_sessions":       a.cfg.Sessions.Enabled,
		"backends":              backends,
	})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if a.sessions == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Sticky sessions not enabled",
		})
		return
	}

	writeJSON(w, http.StatusOK, a.sessions.Stats())
}

type backendRequest struct {
	URL    string `json:"url"`
	Weight int    `json:"weight,omitempty"`
}

func (a *API) addBackend(w http.ResponseWriter, r *http.Request) {
	var req backendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
		return
	}

	parsed, err := parseBackendURL(req.URL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	if a.pool.ByURL(parsed) != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "Backend already registered"})
		return
	}

	b := backend.New(parsed, req.Weight)
	a.pool.Add(b)

	if a.onAdd != nil {
		a.onAdd(b)
	}

	a.logger.Info("Backend added", slog.String("url", b.URL().String()))

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Backend added successfully",
		"backend": map[string]any{
			"url":    b.URL().String(),
			"weight": b.Weight(),
		},
		"total_backends": a.pool.Count(),
	})
}

func (a *API) removeBackend(w http.ResponseWriter, r *http.Request) {
	var req backendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
		return
	}

	parsed, err := parseBackendURL(req.URL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	removed := a.pool.ByURL(parsed)
	if removed == nil || !a.pool.Remove(parsed) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Backend not found"})
		return
	}

	if a.onRemove != nil {
		a.onRemove(removed)
	}

	if a.sessions != nil {
		a.sessions.Evict(removed)
	}

	a.logger.Info("Backend removed", slog.String("url", req.URL))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Backend removed successfully",
		"removed_backend": req.URL,
		"total_backends":  a.pool.Count(),
	})
}

func parseBackendURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errEmptyURL
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, errInvalidURL
	}

	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
