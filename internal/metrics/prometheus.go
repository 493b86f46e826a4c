package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/ldpcsim/internal/sim"
)

// Collector exports harness activity to Prometheus. It is a sim.Observer.
type Collector struct {
	runsTotal      prometheus.Counter     // Completed runs
	bitErrorsTotal prometheus.Counter     // Residual bit errors summed over runs
	frameErrors    prometheus.Counter     // Runs with at least one residual error
	failuresTotal  *prometheus.CounterVec // Failed runs (by stage)
	runLatency     prometheus.Histogram   // Host wall time per run
	deviceTime     prometheus.Histogram   // Device execution time per run
	lastBitErrors  prometheus.Gauge       // Bit errors of the most recent run
	injectedErrors prometheus.Gauge       // Injected errors of the most recent run
	iterations     prometheus.Gauge       // BP iterations of the most recent run
}

// NewCollector registers the collectors with reg; a nil reg means the
// default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	latencyBuckets := prometheus.ExponentialBuckets(0.05, 2, 14)

	return &Collector{
		runsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ldpcsim_runs_total",
			Help: "Completed simulation runs",
		}),
		bitErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ldpcsim_bit_errors_total",
			Help: "Residual bit errors after decoding, summed over runs",
		}),
		frameErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "ldpcsim_frame_errors_total",
			Help: "Runs that left at least one residual bit error",
		}),
		failuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ldpcsim_run_failures_total",
			Help: "Runs that failed, by pipeline stage",
		}, []string{"stage"}),
		runLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ldpcsim_run_duration_ms",
			Help:    "Host wall time from submission to completion in milliseconds",
			Buckets: latencyBuckets,
		}),
		deviceTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ldpcsim_device_duration_ms",
			Help:    "Device execution time per run in milliseconds",
			Buckets: latencyBuckets,
		}),
		lastBitErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "ldpcsim_last_bit_errors",
			Help: "Residual bit errors of the most recent run",
		}),
		injectedErrors: f.NewGauge(prometheus.GaugeOpts{
			Name: "ldpcsim_last_injected_errors",
			Help: "Injected channel errors of the most recent run",
		}),
		iterations: f.NewGauge(prometheus.GaugeOpts{
			Name: "ldpcsim_last_bp_iterations",
			Help: "Belief propagation iterations of the most recent run",
		}),
	}
}

func (c *Collector) OnRun(r *sim.Result) {
	c.runsTotal.Inc()
	c.bitErrorsTotal.Add(float64(r.BitErrorCount))
	if r.BitErrorCount > 0 {
		c.frameErrors.Inc()
	}
	c.runLatency.Observe(r.ElapsedMillis())
	c.deviceTime.Observe(float64(r.DeviceTime.Microseconds()) / 1000)
	c.lastBitErrors.Set(float64(r.BitErrorCount))
	c.injectedErrors.Set(float64(r.Params.InjectedErrors))
	c.iterations.Set(float64(r.Params.BPIterations))
}

func (c *Collector) OnFailure(stage string, err error) {
	if stage == "" {
		stage = "unknown"
	}
	c.failuresTotal.WithLabelValues(stage).Inc()
}
