package tasks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects sync counters. A nil *Metrics records nothing.
type Metrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastRunSuccess prometheus.Gauge
	playlistsTotal *prometheus.CounterVec
	tracksTotal    *prometheus.CounterVec
	searchesTotal  *prometheus.CounterVec
}

// NewMetrics registers the sync metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plexsync_runs_total",
				Help: "Total number of sync runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plexsync_run_duration_seconds",
				Help:    "Duration of sync runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		lastRunSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "plexsync_last_run_success_timestamp_seconds",
				Help: "Unix time of the last sync run without failures",
			},
		),
		playlistsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plexsync_playlists_total",
				Help: "Total number of reconciled playlists by action",
			},
			[]string{"action"},
		),
		tracksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plexsync_tracks_total",
				Help: "Total number of resolved source tracks by status",
			},
			[]string{"status"},
		),
		searchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plexsync_library_searches_total",
				Help: "Total number of library searches by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
	}
}

func (m *Metrics) observeTrack(status Status) {
	if m == nil {
		return
	}
	m.tracksTotal.WithLabelValues(status.String()).Inc()
}

func (m *Metrics) observeSearch(stage string, outcome searchOutcome) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(stage, outcome.String()).Inc()
}

func (m *Metrics) observePlaylist(action string) {
	if m == nil {
		return
	}
	m.playlistsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) observeRun(res *SyncResult) {
	if m == nil {
		return
	}
	status := "completed"
	if res.Failed() > 0 {
		status = "partial"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(res.Duration().Seconds())
	if status == "completed" {
		m.lastRunSuccess.Set(float64(time.Now().Unix()))
	}
}
