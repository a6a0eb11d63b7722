// Package admin serves the operational API on a separate listener: pool
// status, runtime backend membership changes, configuration inspection,
// sticky session statistics and prometheus metrics.
package admin
