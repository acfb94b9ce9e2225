// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the "status" label of runs_total.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Collector groups the pipeline metrics under one registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	framesCompleted prometheus.Counter
	framesReleased  prometheus.Counter
	framesFailed    prometheus.Counter
	buffered        prometheus.Gauge
	bufferedPeak    prometheus.Gauge
	inFlight        prometheus.Gauge
	runDuration     prometheus.Histogram
	runs            *prometheus.CounterVec
}

// NewCollector creates and registers the pipeline metrics on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		framesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "timelapse",
			Name:      "frames_completed_total",
			Help:      "Frames transformed by workers, in completion order.",
		}),
		framesReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "timelapse",
			Name:      "frames_released_total",
			Help:      "Frames handed to the sink in sequence order.",
		}),
		framesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "timelapse",
			Name:      "frames_failed_total",
			Help:      "Frames whose transform failed.",
		}),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timelapse",
			Name:      "reorder_buffer_entries",
			Help:      "Completed frames waiting for the sink cursor.",
		}),
		bufferedPeak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timelapse",
			Name:      "reorder_buffer_peak_entries",
			Help:      "Largest reorder buffer size seen in the last run.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timelapse",
			Name:      "frames_in_flight",
			Help:      "Frames submitted but not yet released to the sink.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "timelapse",
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timelapse",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"status"}),
	}

	c.registry.MustRegister(
		c.framesCompleted,
		c.framesReleased,
		c.framesFailed,
		c.buffered,
		c.bufferedPeak,
		c.inFlight,
		c.runDuration,
		c.runs,
	)
	return c
}

// Registry returns the registry holding the pipeline metrics.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) FrameCompleted() {
	if c != nil {
		c.framesCompleted.Inc()
	}
}

func (c *Collector) FrameReleased() {
	if c != nil {
		c.framesReleased.Inc()
	}
}

func (c *Collector) FrameFailed() {
	if c != nil {
		c.framesFailed.Inc()
	}
}

// SetBuffered records the current and peak reorder buffer sizes.
func (c *Collector) SetBuffered(current, peak int) {
	if c != nil {
		c.buffered.Set(float64(current))
		c.bufferedPeak.Set(float64(peak))
	}
}

func (c *Collector) SetInFlight(n int) {
	if c != nil {
		c.inFlight.Set(float64(n))
	}
}

// RunFinished records the outcome and duration of a run.
func (c *Collector) RunFinished(status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(status).Inc()
	c.runDuration.Observe(elapsed.Seconds())
}
