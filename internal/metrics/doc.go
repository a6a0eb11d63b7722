// Package metrics collects proxy telemetry through a channel-based event
// pipeline backed by a private prometheus registry.
//
// The request path and health checker emit events with non-blocking sends;
// a dedicated goroutine turns them into counters, histograms and gauges:
//
//   - proxy_requests_received_total, proxy_backend_selections_total
//   - proxy_responses_total (backend/method/status)
//   - proxy_request_duration_seconds histogram
//   - proxy_backend_up, proxy_active_sessions
//   - proxy_failovers_total
//
// The collector drains its channel on shutdown so late events are not lost,
// and exposes its registry via the standard promhttp handler on the admin
// server.
package metrics
