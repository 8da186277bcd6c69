package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "powkie"

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	gamesArchived     prometheus.Counter
	archiveSweeps     *prometheus.CounterVec
	membershipChanges *prometheus.CounterVec
	geocodeRequests   *prometheus.CounterVec
	mapMarkers        prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gamesArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_archived_total",
			Help:      "Games flagged as archived by the lifecycle sweep.",
		}),
		archiveSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_sweeps_total",
			Help:      "Archival sweeps by outcome.",
		}, []string{"result"}),
		membershipChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_changes_total",
			Help:      "Successful joins and leaves.",
		}, []string{"action"}),
		geocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding lookups by result.",
		}, []string{"result"}),
		mapMarkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "map_markers",
			Help:      "Markers currently on the shared map layer.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.gamesArchived,
		m.archiveSweeps,
		m.membershipChanges,
		m.geocodeRequests,
		m.mapMarkers,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) GamesArchived(n int) {
	if m == nil {
		return
	}
	m.gamesArchived.Add(float64(n))
}

func (m *Metrics) ArchiveSweep(result string) {
	if m == nil {
		return
	}
	m.archiveSweeps.WithLabelValues(result).Inc()
}

func (m *Metrics) MembershipChange(action string) {
	if m == nil {
		return
	}
	m.membershipChanges.WithLabelValues(action).Inc()
}

func (m *Metrics) GeocodeRequest(result string) {
	if m == nil {
		return
	}
	m.geocodeRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) MapMarkers(n int) {
	if m == nil {
		return
	}
	m.mapMarkers.Set(float64(n))
}
