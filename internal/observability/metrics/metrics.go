package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	registry *prometheus.Registry

	syncRuns    *prometheus.CounterVec
	rowsSynced  *prometheus.CounterVec
	loginEvents *prometheus.CounterVec
}

// New builds the instrument set on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesync_sync_runs_total",
		Help: "Sync runs by outcome.",
	}, []string{"outcome"})
	rowsSynced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesync_rows_synced_total",
		Help: "Rows acknowledged by the server, by kind.",
	}, []string{"kind"})
	loginEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salesync_login_events_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	registry.MustRegister(syncRuns, rowsSynced, loginEvents)

	return &Metrics{
		registry:    registry,
		syncRuns:    syncRuns,
		rowsSynced:  rowsSynced,
		loginEvents: loginEvents,
	}
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordSyncRun increments sync run counts.
func (m *Metrics) RecordSyncRun(outcome string) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(strings.TrimSpace(outcome)).Inc()
}

// RecordRowsSynced adds acknowledged row counts.
func (m *Metrics) RecordRowsSynced(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsSynced.WithLabelValues(strings.TrimSpace(kind)).Add(float64(n))
}

// RecordLogin increments login attempt counts.
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.loginEvents.WithLabelValues(strings.TrimSpace(result)).Inc()
}
