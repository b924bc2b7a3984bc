// Package observability provides structured logging, Prometheus metrics,
// health endpoints, and graceful shutdown for the Lumen API server.
//
// Logging uses stdlib slog with a JSON handler. Metrics cover HTTP traffic
// plus the authentication-specific counters (logins, token issuance,
// refresh rotations, authorization decisions, permission cache traffic).
// The health server runs on a separate port so Kubernetes probes are not
// affected by API load.
package observability
