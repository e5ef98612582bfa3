package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reactor"

// registry holds every reactor collector plus the process and Go runtime
// collectors. It is private so repeated test runs never collide with the
// global default registry.
var registry = prometheus.NewRegistry()

var (
	registerOnce sync.Once

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	turnsPerRun    *prometheus.HistogramVec
	modelLatency   *prometheus.HistogramVec
	cooldownActive *prometheus.GaugeVec

	toolCalls    *prometheus.CounterVec
	toolLatency  *prometheus.HistogramVec
	toolFailures *prometheus.CounterVec

	memoryRecords      prometheus.Gauge
	memoryQueryLatency prometheus.Histogram
	memoryAddLatency   prometheus.Histogram
)

func register() {
	registerOnce.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		factory := promauto.With(registry)

		runsTotal = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Agent runs by provider and terminal status.",
		}, []string{"provider", "status"})
		runDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a whole agent run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"provider"})
		turnsPerRun = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "turns",
			Help:      "Turns consumed per run by terminal status.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}, []string{"status"})
		modelLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Latency of one model backend call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"})
		cooldownActive = factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "cooldown_active",
			Help:      "1 while a provider profile is cooling down after a failure.",
		}, []string{"provider"})

		toolCalls = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "status"})
		toolLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "duration_seconds",
			Help:      "Tool invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"})
		toolFailures = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "failures_total",
			Help:      "Tool invocations that returned an error.",
		}, []string{"tool"})

		memoryRecords = factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "records",
			Help:      "Records held by the long-term store.",
		})
		memoryQueryLatency = factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "query_duration_seconds",
			Help:      "Nearest-neighbour query latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		})
		memoryAddLatency = factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "add_duration_seconds",
			Help:      "Latency of embedding and storing a batch of texts.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		})
	})
}

// EnsureRegistered creates the collectors. Safe to call many times.
func EnsureRegistered() {
	register()
}

// MetricsHandler serves the reactor registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	register()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func RecordToolExecution(tool string, duration time.Duration, ok bool) {
	register()
	toolCalls.WithLabelValues(tool, outcome(ok)).Inc()
	toolLatency.WithLabelValues(tool).Observe(duration.Seconds())
	if !ok {
		toolFailures.WithLabelValues(tool).Inc()
	}
}

func RecordAgentRun(provider string, duration time.Duration, ok bool) {
	register()
	runsTotal.WithLabelValues(provider, outcome(ok)).Inc()
	runDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordAgentTurns observes how many turns a run used before reaching status.
func RecordAgentTurns(status string, turns int) {
	register()
	turnsPerRun.WithLabelValues(status).Observe(float64(turns))
}

func RecordModelCall(provider string, duration time.Duration) {
	register()
	modelLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

func SetProviderCooldown(provider string, active bool) {
	register()
	if active {
		cooldownActive.WithLabelValues(provider).Set(1)
		return
	}
	cooldownActive.WithLabelValues(provider).Set(0)
}

func SetMemoryEntries(total int) {
	register()
	memoryRecords.Set(float64(total))
}

func RecordMemorySearch(duration time.Duration) {
	register()
	memoryQueryLatency.Observe(duration.Seconds())
}

func RecordMemoryWrite(duration time.Duration) {
	register()
	memoryAddLatency.Observe(duration.Seconds())
}
