// Package proxy contains the request-path handler: backend selection via
// sticky sessions and the configured strategy, circuit breaker gating,
// forwarding through each backend's reverse proxy, and single-retry
// failover when the transport to a backend fails.
package proxy
