// Package circuitbreaker implements per-backend circuit breakers.
//
// A breaker has three states:
//
//   - CLOSED: normal operation, requests pass through
//   - OPEN: backend failing, requests blocked
//   - HALF-OPEN: reset timeout elapsed, one probe allowed
//
// The proxy handler consults the breaker before forwarding and records the
// outcome of every attempt, so a flapping backend is taken out of rotation
// even between health check ticks.
package circuitbreaker
