// Package logger builds the application's slog.Logger with a configurable
// level and an environment-appropriate handler (JSON in prod, text
// otherwise).
package logger
