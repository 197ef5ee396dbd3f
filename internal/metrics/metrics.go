// Package metrics exposes Prometheus metrics for the bizhealth daemon.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option configures a Recorder.
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the buckets, in seconds, of latency histograms.
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// WithRegistry registers metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(r *Recorder) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// Recorder owns every bizhealth metric. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	scoresTotal   *prometheus.CounterVec
	scoreDuration prometheus.Histogram
	categoryScore *prometheus.GaugeVec
	totalScore    *prometheus.GaugeVec
	clientsScored prometheus.Counter
	archiveErrors *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
}

// New creates a Recorder. Without WithRegistry the metrics live on a fresh
// registry that also carries the Go and process collectors.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "bizhealth",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	auto := promauto.With(r.registry)
	r.scoresTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "scores_total",
		Help:      "Business health scores computed, by outcome.",
	}, []string{"outcome"})
	r.scoreDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "score_duration_seconds",
		Help:      "Time spent scoring one snapshot.",
		Buckets:   r.buckets,
	})
	r.categoryScore = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Name:      "category_score",
		Help:      "Most recent category score per workspace (0-25).",
	}, []string{"workspace", "category"})
	r.totalScore = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Name:      "total_score",
		Help:      "Most recent total score per workspace (0-100).",
	}, []string{"workspace"})
	r.clientsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "clients_scored_total",
		Help:      "Client health scores computed.",
	})
	r.archiveErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "archive_errors_total",
		Help:      "Report archive failures, by operation.",
	}, []string{"op"})
	r.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status_code"})
	r.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   r.buckets,
	}, []string{"route", "method"})
	r.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "report_cache_lookups_total",
		Help:      "Report cache lookups, by result.",
	}, []string{"result"})
	return r
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveScore records one engine run. categories maps category keys to
// their scores; it is ignored when err is non-nil.
func (r *Recorder) ObserveScore(workspace string, total float64, categories map[string]float64, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.scoreDuration.Observe(elapsed.Seconds())
	if err != nil {
		r.scoresTotal.WithLabelValues("error").Inc()
		return
	}
	r.scoresTotal.WithLabelValues("ok").Inc()
	r.totalScore.WithLabelValues(workspace).Set(total)
	for cat, v := range categories {
		r.categoryScore.WithLabelValues(workspace, cat).Set(v)
	}
}

// ClientsScored adds n to the client score counter.
func (r *Recorder) ClientsScored(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.clientsScored.Add(float64(n))
}

// ArchiveError counts a failed archive operation.
func (r *Recorder) ArchiveError(op string) {
	if r == nil {
		return
	}
	r.archiveErrors.WithLabelValues(op).Inc()
}

// CacheLookup counts a report cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
