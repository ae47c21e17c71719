package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridcast/gridcast/internal/models"
)

// EngineCollector exposes Prometheus metrics for the forecast engine. All
// methods are safe on a nil receiver so batch CLI runs can pass nil and skip
// instrumentation entirely.
type EngineCollector struct {
	fallbackTotal    *prometheus.CounterVec
	forecastTotal    *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	pipelineDuration prometheus.Histogram
	trainingSamples  prometheus.Gauge
}

// NewEngineCollector constructs the engine collector and registers it on the
// given registry, typically the HTTPCollector's.
func NewEngineCollector(registry *prometheus.Registry) (*EngineCollector, error) {
	fallbackTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridcast",
		Subsystem: "engine",
		Name:      "fallback_resolutions_total",
		Help:      "Lag resolutions by fallback tier and resolved field.",
	}, []string{"tier", "field"})

	forecastTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridcast",
		Subsystem: "engine",
		Name:      "forecasts_total",
		Help:      "Forecast timesteps produced, by region and model.",
	}, []string{"region", "model"})

	trainingDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gridcast",
		Subsystem: "engine",
		Name:      "training_duration_seconds",
		Help:      "Model training duration.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	pipelineDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gridcast",
		Subsystem: "engine",
		Name:      "pipeline_duration_seconds",
		Help:      "Full pipeline run duration.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	trainingSamples := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridcast",
		Subsystem: "engine",
		Name:      "training_samples",
		Help:      "Training samples used by the most recent run.",
	})

	for _, c := range []prometheus.Collector{
		fallbackTotal, forecastTotal, trainingDuration, pipelineDuration, trainingSamples,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &EngineCollector{
		fallbackTotal:    fallbackTotal,
		forecastTotal:    forecastTotal,
		trainingDuration: trainingDuration,
		pipelineDuration: pipelineDuration,
		trainingSamples:  trainingSamples,
	}, nil
}

// ObserveFallback records one lag resolution.
func (c *EngineCollector) ObserveFallback(field string, tier models.FallbackTier) {
	if c == nil {
		return
	}
	c.fallbackTotal.WithLabelValues(string(tier), field).Inc()
}

// ObserveForecast records one produced forecast timestep.
func (c *EngineCollector) ObserveForecast(region, model string) {
	if c == nil {
		return
	}
	c.forecastTotal.WithLabelValues(region, model).Inc()
}

// ObserveTraining records training duration and sample count.
func (c *EngineCollector) ObserveTraining(d time.Duration, samples int) {
	if c == nil {
		return
	}
	c.trainingDuration.Observe(d.Seconds())
	c.trainingSamples.Set(float64(samples))
}

// ObservePipeline records a full pipeline run duration.
func (c *EngineCollector) ObservePipeline(d time.Duration) {
	if c == nil {
		return
	}
	c.pipelineDuration.Observe(d.Seconds())
}
