package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ndvi_forecaster"

// Metrics holds the Prometheus counters, histograms, and gauges for the forecast service.
type Metrics struct {
	HTTPRequests    *prometheus.CounterVec   // labels: route, code
	Forecasts       *prometheus.CounterVec   // labels: region, backend, outcome
	ForecastLatency *prometheus.HistogramVec // labels: backend
	RateLimited     prometheus.Counter

	// LearnedModels is 1 for every region with a loaded learned model
	LearnedModels *prometheus.GaugeVec // labels: region
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		Forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Forecast requests by region, backend and outcome.",
		}, []string{"region", "backend", "outcome"}),
		ForecastLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Duration of a forecast including validation.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"backend"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Forecast requests rejected by the rate limiter.",
		}),
		LearnedModels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "learned_model_loaded",
			Help:      "1 when a learned model is loaded for the region, 0 otherwise.",
		}, []string{"region"}),
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.HTTPRequests,
		m.Forecasts,
		m.ForecastLatency,
		m.RateLimited,
		m.LearnedModels,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere so tests can create as
// many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
