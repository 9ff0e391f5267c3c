package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/learnhub/internal/platform/envutil"
	"github.com/yungbote/learnhub/internal/platform/logger"
)

// Metrics holds the hub's collectors. Every method is safe on a nil
// receiver so callers never need to check whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	observations    prometheus.Counter
	selections      *prometheus.CounterVec
	jitterRetries   *prometheus.CounterVec
	saveFailures    prometheus.Counter
	corruptRestores prometheus.Counter
	merges          *prometheus.CounterVec
	abilityGain     prometheus.Histogram

	analysisRuns     *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	eventsFolded     prometheus.Counter
	eventsSkipped    *prometheus.CounterVec
	edgesPublished   prometheus.Gauge
	cohortSize       prometheus.Gauge
	publishFailures  *prometheus.CounterVec

	busMessages *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", true)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide collectors once. It returns nil when
// METRICS_ENABLED is false.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics(prometheus.NewRegistry())
		if log != nil {
			log.Info("Metrics initialized")
		}
	})
	return instance
}

// NewMetrics registers a fresh set of collectors on reg. Tests use their own
// registry; the process uses Init.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnhub_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "learnhub_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		observations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_engine_observations_total",
			Help: "Observations folded into the adaptive engine.",
		}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_engine_selections_total",
			Help: "Lesson selections by outcome.",
		}, []string{"outcome"}),
		jitterRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_engine_jitter_retries_total",
			Help: "Precision inversions that needed diagonal jitter, by result.",
		}, []string{"result"}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_engine_save_failures_total",
			Help: "Engine state saves that failed and were swallowed.",
		}),
		corruptRestores: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_engine_corrupt_state_total",
			Help: "State files that failed to load and were backed up.",
		}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_federation_merges_total",
			Help: "Federated posterior merges by source/status.",
		}, []string{"source", "status"}),
		abilityGain: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "learnhub_engine_gain",
			Help:    "Rasch ability step per observation.",
			Buckets: []float64{-2, -1, -0.5, -0.1, 0, 0.1, 0.5, 1, 2},
		}),
		analysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_sentry_analysis_runs_total",
			Help: "Skill-graph analysis runs by trigger/status.",
		}, []string{"trigger", "status"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "learnhub_sentry_analysis_duration_seconds",
			Help:    "Skill-graph analysis run duration.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		eventsFolded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_sentry_events_folded_total",
			Help: "Completion events folded into contingency tables.",
		}),
		eventsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_sentry_events_skipped_total",
			Help: "Event lines skipped by reason.",
		}, []string{"reason"}),
		edgesPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "learnhub_sentry_edges_published",
			Help: "Edges in the last published skill graph.",
		}),
		cohortSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "learnhub_sentry_cohort_size",
			Help: "Members of the last discovered cohort.",
		}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_sentry_publish_failures_total",
			Help: "Graph publication failures by sink.",
		}, []string{"sink"}),
		busMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_bus_messages_total",
			Help: "Hub bus messages by direction/kind.",
		}, []string{"direction", "kind"}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.observations, m.selections, m.jitterRetries, m.saveFailures, m.corruptRestores, m.merges, m.abilityGain,
		m.analysisRuns, m.analysisDuration, m.eventsFolded, m.eventsSkipped, m.edgesPublished, m.cohortSize, m.publishFailures,
		m.busMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// StartServer serves /metrics on its own listener until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if log != nil {
			log.Info("Metrics server listening", "addr", addr)
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && log != nil {
			log.Warn("Metrics server stopped", "error", err)
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	code := strconv.Itoa(status)
	m.apiRequests.WithLabelValues(method, route, code).Inc()
	m.apiLatency.WithLabelValues(method, route, code).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveObservation(gain float64) {
	if m == nil {
		return
	}
	m.observations.Inc()
	m.abilityGain.Observe(gain)
}

// IncSelection records a selection outcome: "selected", "empty" or "error".
func (m *Metrics) IncSelection(outcome string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncJitterRetry(recovered bool) {
	if m == nil {
		return
	}
	result := "recovered"
	if !recovered {
		result = "failed"
	}
	m.jitterRetries.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSaveFailure() {
	if m == nil {
		return
	}
	m.saveFailures.Inc()
}

func (m *Metrics) IncCorruptState() {
	if m == nil {
		return
	}
	m.corruptRestores.Inc()
}

func (m *Metrics) IncMerge(source, status string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(source, status).Inc()
}

func (m *Metrics) ObserveAnalysis(trigger, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "manual"
	}
	m.analysisRuns.WithLabelValues(trigger, status).Inc()
	m.analysisDuration.Observe(dur.Seconds())
}

func (m *Metrics) AddEventsFolded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsFolded.Add(float64(n))
}

func (m *Metrics) AddEventsSkipped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsSkipped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) SetPublishedGraph(edges, cohortSize int) {
	if m == nil {
		return
	}
	m.edgesPublished.Set(float64(edges))
	m.cohortSize.Set(float64(cohortSize))
}

func (m *Metrics) IncPublishFailure(sink string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncBusMessage(direction, kind string) {
	if m == nil {
		return
	}
	m.busMessages.WithLabelValues(direction, kind).Inc()
}
