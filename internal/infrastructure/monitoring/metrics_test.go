package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSpawn("idle")
		m.RecordSpawnError()
		m.RecordKill("killed")
		m.SetPtyLive(2)
		m.RecordIdleHandoff(true)
		m.IncSessionsActive()
		m.DecSessionsActive()
		m.RecordCapture("full", "exit")
		m.RecordFlush(10)
		m.IncWSConnections()
		m.DecWSConnections()
		m.RecordWSMessage("in", "terminal-ready")
	})
}

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordSpawn("idle")
	a.RecordSpawn("idle")
	b.RecordSpawn("idle")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.PtySpawned.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.PtySpawned.WithLabelValues("idle")))
}

func TestRecorders(t *testing.T) {
	m := NewMetrics()

	m.RecordIdleHandoff(true)
	m.RecordIdleHandoff(false)
	m.RecordIdleHandoff(false)
	m.RecordFlush(5)
	m.RecordFlush(7)
	m.SetPtyLive(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdleHandoffs.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IdleHandoffs.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutputFlushes))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.OutputBytes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.PtyLive))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/health", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "terminal_http_requests_total")
	assert.Contains(t, w.Body.String(), "terminal_uptime_seconds")
}
