// Package monitoring provides Prometheus metrics for the daemon:
// HTTP request metrics via gin middleware, plus engine-level gauges and
// counters (live terminal sessions, bytes streamed, git invocations,
// device-auth outcomes, WebSocket connections).
package monitoring
