// Package config handles loading and parsing of configuration from YAML
// files and environment variables. It defines the application configuration
// structure including listener addresses, backend URLs and weights, strategy
// selection, sticky session and circuit breaker settings, and health check
// intervals.
package config
