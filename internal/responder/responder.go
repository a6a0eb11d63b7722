package responder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Responder is a fixed-response HTTP backend used to exercise the proxy.
// Every GET request, regardless of path or query, is answered with the
// instance identifier as a text/plain body. Requests are deliberately not
// logged so load tests do not drown in per-request output.
type Responder struct {
	identifier string
	server     *http.Server
}

// Identifier builds the canonical identifier for a port, e.g. BACKEND_8082.
func Identifier(port int) string {
	return fmt.Sprintf("BACKEND_%d", port)
}

// New creates a responder listening on the given port. An empty identifier
// defaults to BACKEND_<port>.
func New(port int, identifier string) *Responder {
	if identifier == "" {
		identifier = Identifier(port)
	}

	r := &Responder{identifier: identifier}
	r.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r.Handler(),
	}

	return r
}

// Handler returns the single-route handler. Exposed separately so tests can
// drive it through httptest without binding the fixed port.
func (r *Responder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "Not Implemented", http.StatusNotImplemented)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(r.identifier))
	})
}

// Body returns the fixed identifier this instance serves.
func (r *Responder) Body() string {
	return r.identifier
}

// Addr returns the configured listen address.
func (r *Responder) Addr() string {
	return r.server.Addr
}

// Start blocks serving requests until Shutdown is called.
// A bind failure is returned as-is for the caller to report.
func (r *Responder) Start() error {
	err := r.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Serve serves on an already-bound listener. Used by tests that need an
// ephemeral port.
func (r *Responder) Serve(l net.Listener) error {
	err := r.server.Serve(l)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (r *Responder) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}
