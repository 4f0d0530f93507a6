// Package metrics exposes the Prometheus collectors shared across the
// runtime's ambient HTTP layer and the Module Runtime's lifecycle/health
// reporting, plus operation counters for the Identifier & Schema Kernel and
// Client Hub.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modrun",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modrun",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modrun",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	moduleReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modrun",
			Subsystem: "engine",
			Name:      "module_ready",
			Help:      "Current readiness of modules (1 ready, 0 otherwise).",
		},
		[]string{"module"},
	)

	moduleWaitingDeps = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modrun",
			Subsystem: "engine",
			Name:      "module_waiting_dependencies",
			Help:      "Whether a module is waiting for dependencies (1 yes, 0 no).",
		},
		[]string{"module"},
	)

	moduleStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modrun",
			Subsystem: "engine",
			Name:      "module_status",
			Help:      "Lifecycle status of modules (one-hot by status label).",
		},
		[]string{"module", "status"},
	)

	moduleStartSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modrun",
			Subsystem: "engine",
			Name:      "module_start_seconds",
			Help:      "Start duration for modules (seconds).",
		},
		[]string{"module"},
	)

	moduleStopSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modrun",
			Subsystem: "engine",
			Name:      "module_stop_seconds",
			Help:      "Stop duration for modules (seconds).",
		},
		[]string{"module"},
	)

	kernelOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modrun",
			Subsystem: "kernel",
			Name:      "operations_total",
			Help:      "Identifier & Schema Kernel operations grouped by kind and result.",
		},
		[]string{"operation", "result"},
	)

	hubOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modrun",
			Subsystem: "hub",
			Name:      "operations_total",
			Help:      "Client Hub register/get operations grouped by kind and result.",
		},
		[]string{"operation", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		moduleReady,
		moduleWaitingDeps,
		moduleStatus,
		moduleStartSeconds,
		moduleStopSeconds,
		kernelOperations,
		hubOperations,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// ModuleMetric captures lifecycle/readiness for engine modules used to populate Prometheus gauges.
type ModuleMetric struct {
	Name    string
	Status  string
	Ready   bool
	Waiting bool
}

// RecordModuleMetrics publishes module lifecycle/readiness gauges. It resets previous values to keep metrics
// aligned with the latest state and to avoid stale statuses lingering when a module transitions.
func RecordModuleMetrics(mods []ModuleMetric) {
	moduleReady.Reset()
	moduleWaitingDeps.Reset()
	moduleStatus.Reset()
	for _, m := range mods {
		ready := 0.0
		if m.Ready {
			ready = 1.0
		}
		waiting := 0.0
		if m.Waiting {
			waiting = 1.0
		}
		moduleReady.WithLabelValues(m.Name).Set(ready)
		moduleWaitingDeps.WithLabelValues(m.Name).Set(waiting)
		moduleStatus.WithLabelValues(m.Name, m.Status).Set(1)
	}
}

// ModuleTiming captures start/stop durations for engine modules.
type ModuleTiming struct {
	Name         string
	StartSeconds float64
	StopSeconds  float64
}

// RecordModuleTimings publishes module start/stop durations (seconds).
func RecordModuleTimings(timings []ModuleTiming) {
	for _, t := range timings {
		if t.Name == "" {
			continue
		}
		moduleStartSeconds.WithLabelValues(t.Name).Set(t.StartSeconds)
		moduleStopSeconds.WithLabelValues(t.Name).Set(t.StopSeconds)
	}
}

// RecordKernelOperation increments the IDK operation counter. result is
// typically "ok" or the error's concrete type name.
func RecordKernelOperation(operation, result string) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = "ok"
	}
	kernelOperations.WithLabelValues(operation, result).Inc()
}

// RecordHubOperation increments the Client Hub operation counter.
func RecordHubOperation(operation, result string) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = "ok"
	}
	hubOperations.WithLabelValues(operation, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + strings.Split(trimmed, "/")[0]
}
