// Package strategy defines the backend selection interface and the shipped
// algorithms:
//
//   - Round Robin: sequential distribution across backends
//   - Weighted Round Robin: smooth distribution proportional to weights
//   - Random: uniform random selection
//   - Least Connections: routes to the backend with fewest active connections
//
// Strategies only ever see the healthy, breaker-admitted candidates; the
// proxy handler does that filtering before calling SelectBackend.
package strategy
