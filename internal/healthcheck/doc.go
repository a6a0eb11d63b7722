// Package healthcheck runs one probe loop per backend, flipping the
// backend's health flag on status changes and notifying a callback so the
// rest of the system (metrics, sticky sessions) can react. The Monitor
// tracks the loops by URL so removing a backend also stops its probes.
package healthcheck
