package paster

import "github.com/prometheus/client_golang/prometheus"

// Fetch results.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Drop reasons.
const (
	reasonDecode     = "decode"
	reasonOutOfRange = "out_of_range"
	reasonDuplicate  = "duplicate"
	reasonLate       = "late"
)

// Metrics counts worker pool outcomes.
type Metrics struct {
	Fetches       *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	Stored        prometheus.Counter
	Dropped       *prometheus.CounterVec
	Filled        prometheus.Gauge
}

// NewMetrics creates the pool metrics and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "paster_fetch_total", Help: "Fragment fetch attempts by result"},
			[]string{"result"},
		),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "paster_fetch_duration_seconds",
			Help:    "Time spent per fragment fetch",
			Buckets: prometheus.DefBuckets,
		}),
		Stored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paster_fragments_stored_total",
			Help: "Fragments stored in the fragment table",
		}),
		Dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "paster_fragments_dropped_total", Help: "Fetched fragments that were not stored, by reason"},
			[]string{"reason"},
		),
		Filled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paster_fragments_filled",
			Help: "Filled slots in the fragment table",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Fetches, m.FetchDuration, m.Stored, m.Dropped, m.Filled)
	}

	return m
}
