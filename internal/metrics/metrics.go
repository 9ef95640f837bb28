package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the release tracking collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Sweeps         *prometheus.CounterVec
	SweepDuration  prometheus.Histogram
	LookupFailures *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	Deliveries     *prometheus.CounterVec
	TrackRequests  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "releasebot",
			Name:      "sweeps_total",
			Help:      "Release sweeps by outcome.",
		}, []string{"outcome"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "releasebot",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of release sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		LookupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "releasebot",
			Name:      "lookup_failures_total",
			Help:      "Title lookups that failed during a sweep.",
		}, []string{"kind"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "releasebot",
			Name:      "notifications_total",
			Help:      "Notifications produced by sweeps.",
		}, []string{"kind"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "releasebot",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by result.",
		}, []string{"result"}),
		TrackRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "releasebot",
			Name:      "track_requests_total",
			Help:      "Track requests by media type and result.",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(m.Sweeps, m.SweepDuration, m.LookupFailures, m.Notifications, m.Deliveries, m.TrackRequests)
	return m
}

// ObserveSweep records a finished sweep and its duration
func (m *Metrics) ObserveSweep(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Sweeps.WithLabelValues(outcome).Inc()
	m.SweepDuration.Observe(seconds)
}

// LookupFailed counts a failed title lookup
func (m *Metrics) LookupFailed(kind string) {
	if m == nil {
		return
	}
	m.LookupFailures.WithLabelValues(kind).Inc()
}

// NotificationsProduced adds n notifications of the given kind
func (m *Metrics) NotificationsProduced(kind string, n int) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind).Add(float64(n))
}

// Delivered counts a delivery attempt by result
func (m *Metrics) Delivered(result string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(result).Inc()
}

// Tracked counts a track request by media type and result
func (m *Metrics) Tracked(kind, result string) {
	if m == nil {
		return
	}
	m.TrackRequests.WithLabelValues(kind, result).Inc()
}
