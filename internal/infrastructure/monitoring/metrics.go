package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the daemon.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	SpawnErrors    prometheus.Counter
	OutputBytes    prometheus.Counter

	// Repository metrics
	GitCommands    *prometheus.CounterVec
	GitDuration    *prometheus.HistogramVec
	GitFailures    *prometheus.CounterVec

	// Device-auth metrics
	AuthAttempts prometheus.Counter
	AuthOutcomes *prometheus.CounterVec
	AuthPolls    prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSEvents      *prometheus.CounterVec

	registry  *prometheus.Registry
	startTime time.Time
}

// NewMetrics creates a metrics collector with its own registry so
// independent instances can coexist in tests.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workbench_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "workbench_terminal_sessions_active",
				Help: "Number of live terminal sessions",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "workbench_terminal_sessions_total",
				Help: "Total number of terminal sessions created",
			},
		),
		SpawnErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "workbench_terminal_spawn_errors_total",
				Help: "Total number of asynchronous spawn failures",
			},
		),
		OutputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "workbench_terminal_output_bytes_total",
				Help: "Total bytes of terminal output streamed",
			},
		),

		GitCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_git_commands_total",
				Help: "Total git invocations by subcommand",
			},
			[]string{"subcommand"},
		),
		GitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workbench_git_command_duration_seconds",
				Help:    "git invocation duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"subcommand"},
		),
		GitFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_git_failures_total",
				Help: "Total git invocations that exited non-zero",
			},
			[]string{"subcommand"},
		),

		AuthAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "workbench_auth_attempts_total",
				Help: "Total device-authorization attempts started",
			},
		),
		AuthOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_auth_outcomes_total",
				Help: "Terminal device-authorization outcomes",
			},
			[]string{"outcome"},
		),
		AuthPolls: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "workbench_auth_polls_total",
				Help: "Total token polls issued",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "workbench_ws_connections",
				Help: "Open WebSocket connections",
			},
		),
		WSEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workbench_ws_events_total",
				Help: "Events pushed over WebSocket by type",
			},
			[]string{"type"},
		),
	}
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Uptime returns time since the collector was created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
