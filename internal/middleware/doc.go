// Package middleware provides net/http middleware shared by the proxy and
// admin listeners.
package middleware
