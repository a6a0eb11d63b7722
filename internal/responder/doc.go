// Package responder implements the fixed-response test backends fronted by
// the proxy. Each instance binds one port and answers every GET with a
// constant plain-text identifier (BACKEND_8082, BACKEND_8083, BACKEND_8084
// in the standard three-instance setup). Instances share no state; request
// logging is suppressed.
package responder
