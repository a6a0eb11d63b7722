package healthcheck

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/proxykit/reverseproxy/internal/backend"
)

// OnChange is invoked whenever a backend's health status flips.
type OnChange func(b *backend.Backend, healthy bool)

// Watch periodically probes a backend's /health endpoint and updates its
// health status. Runs until ctx is cancelled. onChange may be nil.
func Watch(
	ctx context.Context,
	b *backend.Backend,
	interval time.Duration,
	logger *slog.Logger,
	onChange OnChange,
) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health check stopped",
				slog.String("server", b.URL().String()))
			return

		case <-ticker.C:
			healthy := probe(ctx, client, b)
			changed := b.SetHealthy(healthy)

			if changed {
				if healthy {
					logger.Info("Server is back up",
						slog.String("server", b.URL().String()))
				} else {
					logger.Warn("Server is down",
						slog.String("server", b.URL().String()))
				}

				if onChange != nil {
					onChange(b, healthy)
				}
			}
		}
	}
}

// probe treats any 2xx from /health as healthy. The fixed-response test
// backends answer every GET path with 200, so they need no dedicated
// health route.
func probe(ctx context.Context, client *http.Client, b *backend.Backend) bool {
	healthURL := b.URL().ResolveReference(&url.URL{Path: "/health"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return false
	}

	res, err := client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()

	return res.StatusCode >= 200 && res.StatusCode < 300
}
