package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kraken",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kraken",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kraken",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	attackFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kraken",
			Subsystem: "attacks",
			Name:      "frames_total",
			Help:      "Total number of result frames ingested from leech streams.",
		},
		[]string{"kind"},
	)

	attackCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kraken",
			Subsystem: "attacks",
			Name:      "completions_total",
			Help:      "Total number of attacks reaching a terminal state.",
		},
		[]string{"kind", "ok"},
	)

	attackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kraken",
			Subsystem: "attacks",
			Name:      "duration_seconds",
			Help:      "Wall time from attack start to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
		},
		[]string{"kind"},
	)

	aggregatorUpserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kraken",
			Subsystem: "aggregator",
			Name:      "upserts_total",
			Help:      "Total number of aggregator insert-or-upgrade operations.",
		},
		[]string{"table", "outcome"},
	)

	editorSpills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kraken",
			Subsystem: "editorcache",
			Name:      "spills_total",
			Help:      "Total number of editor cache values spilled to disk after a failed flush.",
		},
		[]string{"field"},
	)

	observationCollectors sync.Map
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		attackFrames,
		attackCompletions,
		attackDuration,
		aggregatorUpserts,
		editorSpills,
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

// RecordAttackFrame counts one ingested result frame.
func RecordAttackFrame(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	attackFrames.WithLabelValues(kind).Inc()
}

// RecordAttackCompletion records an attack reaching a terminal state.
func RecordAttackCompletion(kind string, ok bool, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	attackCompletions.WithLabelValues(kind, strconv.FormatBool(ok)).Inc()
	attackDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAggregatorUpsert counts one insert-or-upgrade; outcome is
// "inserted" or "upgraded".
func RecordAggregatorUpsert(table, outcome string) {
	aggregatorUpserts.WithLabelValues(table, outcome).Inc()
}

// RecordEditorSpill counts one editor cache spill-to-disk.
func RecordEditorSpill(field string) {
	if field == "" {
		field = "unknown"
	}
	editorSpills.WithLabelValues(field).Inc()
}

type observationCollector struct {
	gauge *prometheus.GaugeVec
	hist  *prometheus.HistogramVec
}

// ObservationHooks creates core observation hooks backed by Prometheus metrics.
func ObservationHooks(namespace, subsystem, name string) core.ObservationHooks {
	key := namespace + ":" + subsystem + ":" + name
	var collector observationCollector
	if entry, ok := observationCollectors.Load(key); ok {
		collector = entry.(observationCollector)
	} else {
		collector = createObservationCollector(namespace, subsystem, name)
		observationCollectors.Store(key, collector)
	}
	return core.ObservationHooks{
		OnStart: func(ctx context.Context, meta map[string]string) {
			collector.gauge.WithLabelValues(metaLabel(meta)).Inc()
		},
		OnComplete: func(ctx context.Context, meta map[string]string, err error, duration time.Duration) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Dec()
			status := "success"
			if err != nil {
				status = "error"
			}
			collector.hist.WithLabelValues(label, status).Observe(duration.Seconds())
		},
	}
}

// SearchHooks captures search scatter jobs.
func SearchHooks() core.ObservationHooks {
	return ObservationHooks("kraken", "search", "jobs")
}

// SinkHooks captures per-frame sink handling.
func SinkHooks() core.ObservationHooks {
	return ObservationHooks("kraken", "sink", "frames")
}

// DehashedHooks captures rate-limited dehashed dispatches.
func DehashedHooks() core.ObservationHooks {
	return ObservationHooks("kraken", "dehashed", "requests")
}

func createObservationCollector(namespace, subsystem, name string) observationCollector {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_in_flight",
			Help:      "Current operations in flight for " + subsystem,
		},
		[]string{"resource"},
	)
	hist := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_duration_seconds",
			Help:      "Duration of operations for " + subsystem,
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"resource", "status"},
	)
	Registry.MustRegister(gauge, hist)
	return observationCollector{gauge: gauge, hist: hist}
}

func metaLabel(meta map[string]string) string {
	if meta == nil {
		return "unknown"
	}
	if id, ok := meta["resource"]; ok && id != "" {
		return id
	}
	if id, ok := meta["workspace"]; ok && id != "" {
		return id
	}
	if id, ok := meta["kind"]; ok && id != "" {
		return id
	}
	return "unknown"
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

// canonicalPath collapses uuid path segments so the label cardinality
// stays bounded.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	for i, p := range parts {
		if looksLikeUUID(p) {
			parts[i] = ":uuid"
		}
	}
	if len(parts) > 4 {
		parts = parts[:4]
	}
	return "/" + strings.Join(parts, "/")
}

func looksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, c := range s {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
				return false
			}
		}
	}
	return true
}
