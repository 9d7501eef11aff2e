package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "energy_monitor_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	ingestTotal     *prometheus.CounterVec
	ingestLatency   *prometheus.HistogramVec
	rejectedTotal   *prometheus.CounterVec
	providerErrors  *prometheus.CounterVec
	lastUpdate      prometheus.Gauge
	sideEffectFails *prometheus.CounterVec
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_total",
				Help: "Analysis cycles by reading source and result",
			},
			[]string{"source", "result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Analysis cycle latency in seconds, provider call included",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
			},
			[]string{"result"},
		)
		rejectedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rejected_readings_total",
				Help: "Readings rejected before analysis by source",
			},
			[]string{"source"},
		)
		providerErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "provider_errors_total",
				Help: "Analyzer failures by kind",
			},
			[]string{"kind"},
		)
		lastUpdate = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_update_timestamp_seconds",
				Help: "Unix time of the last stored analysis",
			},
		)
		sideEffectFails = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "side_effect_failures_total",
				Help: "Journal and notifier failures by target",
			},
			[]string{"target"},
		)

		prometheus.MustRegister(
			ingestTotal,
			ingestLatency,
			rejectedTotal,
			providerErrors,
			lastUpdate,
			sideEffectFails,
		)
	})
}

// ObserveIngest records one finished analysis cycle.
func ObserveIngest(source, result string, duration time.Duration, at time.Time) {
	if source == "" {
		source = "unknown"
	}
	if ingestTotal != nil {
		ingestTotal.WithLabelValues(source, result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if lastUpdate != nil {
		lastUpdate.Set(float64(at.Unix()))
	}
}

func IncRejected(source string) {
	if source == "" {
		source = "unknown"
	}
	if rejectedTotal != nil {
		rejectedTotal.WithLabelValues(source).Inc()
	}
}

func IncProviderError(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if providerErrors != nil {
		providerErrors.WithLabelValues(kind).Inc()
	}
}

func IncSideEffectFailure(target string) {
	if sideEffectFails != nil {
		sideEffectFails.WithLabelValues(target).Inc()
	}
}
