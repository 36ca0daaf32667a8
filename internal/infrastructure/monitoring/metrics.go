package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// PTY pool metrics
	PtySpawned     *prometheus.CounterVec
	PtySpawnErrors prometheus.Counter
	PtyKills       *prometheus.CounterVec
	PtyLive        prometheus.Gauge
	IdleHandoffs   *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge
	Captures       *prometheus.CounterVec
	OutputFlushes  prometheus.Counter
	OutputBytes    prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
	registry  *prometheus.Registry
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		registry:  reg,

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "terminal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// PTY pool metrics
		PtySpawned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_pty_spawned_total",
				Help: "Total number of PTY processes spawned",
			},
			[]string{"kind"},
		),
		PtySpawnErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_pty_spawn_errors_total",
				Help: "Total number of failed PTY spawns",
			},
		),
		PtyKills: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_pty_kills_total",
				Help: "Total number of PTY kill attempts",
			},
			[]string{"result"},
		),
		PtyLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "terminal_pty_live",
				Help: "Number of live PTY processes owned by the pool",
			},
		),
		IdleHandoffs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_pty_idle_handoffs_total",
				Help: "Session attach attempts by idle slot outcome",
			},
			[]string{"result"},
		),

		// Session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "terminal_sessions_active",
				Help: "Number of attached terminal sessions",
			},
		),
		Captures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_captures_total",
				Help: "Total number of capture results emitted",
			},
			[]string{"mode", "reason"},
		),
		OutputFlushes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_output_flushes_total",
				Help: "Total number of batched output flushes",
			},
		),
		OutputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_output_bytes_total",
				Help: "Total bytes of PTY output delivered to UIs",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "terminal_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "terminal_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "terminal_uptime_seconds",
			Help: "Host uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSpawn records a spawned PTY of the given kind ("idle" or "session")
func (m *Metrics) RecordSpawn(kind string) {
	if m == nil {
		return
	}
	m.PtySpawned.WithLabelValues(kind).Inc()
}

// RecordSpawnError records a failed spawn
func (m *Metrics) RecordSpawnError() {
	if m == nil {
		return
	}
	m.PtySpawnErrors.Inc()
}

// RecordKill records a kill attempt ("killed", "already_dead" or "error")
func (m *Metrics) RecordKill(result string) {
	if m == nil {
		return
	}
	m.PtyKills.WithLabelValues(result).Inc()
}

// SetPtyLive sets the number of live PTYs
func (m *Metrics) SetPtyLive(count int) {
	if m == nil {
		return
	}
	m.PtyLive.Set(float64(count))
}

// RecordIdleHandoff records whether a session reused the idle PTY
func (m *Metrics) RecordIdleHandoff(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.IdleHandoffs.WithLabelValues(result).Inc()
}

// IncSessionsActive increments attached sessions
func (m *Metrics) IncSessionsActive() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// DecSessionsActive decrements attached sessions
func (m *Metrics) DecSessionsActive() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// RecordCapture records an emitted capture result
func (m *Metrics) RecordCapture(mode, reason string) {
	if m == nil {
		return
	}
	m.Captures.WithLabelValues(mode, reason).Inc()
}

// RecordFlush records one batched output flush of n bytes
func (m *Metrics) RecordFlush(n int) {
	if m == nil {
		return
	}
	m.OutputFlushes.Inc()
	m.OutputBytes.Add(float64(n))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}
