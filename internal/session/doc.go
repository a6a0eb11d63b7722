// Package session implements sticky sessions for the proxy: clients are
// pinned to a backend via a cookie, with a client-IP fallback, for a
// configurable TTL. Sessions pinned to unhealthy backends are evicted so
// traffic fails over instead of sticking to a dead server.
package session
