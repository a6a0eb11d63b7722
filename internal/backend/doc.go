// Package backend models a single upstream server: its URL, selection
// weight, health status, active connection count, and the reverse proxy
// that forwards requests to it with standard X-Forwarded-* headers.
package backend
