package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hvlinks"

// Metrics holds the Prometheus collectors for scrapes, estimates, and fetches.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Scrapes        *prometheus.CounterVec
	LinksProcessed prometheus.Counter
	Estimates      *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
}

// New creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Scrapes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Scrape requests by result (ok, fetch_error, store_error).",
		}, []string{"result"}),
		LinksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_processed_total",
			Help:      "Anchors extracted and scored across all scrapes.",
		}),
		Estimates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimates_total",
			Help:      "Content relevance estimates by outcome (ok, degraded).",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of outbound page fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveScrape records a finished scrape.
func (m *Metrics) ObserveScrape(result string, links int) {
	if m == nil {
		return
	}
	m.Scrapes.WithLabelValues(result).Inc()
	m.LinksProcessed.Add(float64(links))
}

// ObserveEstimate records one estimator outcome.
func (m *Metrics) ObserveEstimate(degraded bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	m.Estimates.WithLabelValues(outcome).Inc()
}

// ObserveFetch records the duration of one outbound fetch.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}
