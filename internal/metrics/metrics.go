package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// Metrics owns a private Prometheus registry with HTTP and grading collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	submissionsGraded   *prometheus.CounterVec
	submissionScore     prometheus.Histogram
	submissionsRejected *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	submissionsGraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_submissions_graded_total",
		Help: "Quiz submissions accepted and graded, by outcome",
	}, []string{"passed"})

	submissionScore := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quiz_submission_score_percent",
		Help:    "Percentage of correct answers per graded submission",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	submissionsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_submissions_rejected_total",
		Help: "Quiz submissions refused, by reason",
	}, []string{"reason"})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		submissionsGraded,
		submissionScore,
		submissionsRejected,
		collectors.NewGoCollector(),
	)

	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		submissionsGraded:   submissionsGraded,
		submissionScore:     submissionScore,
		submissionsRejected: submissionsRejected,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry is exposed for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records one served request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, labelStatus).Inc()
}

func (m *Metrics) SubmissionGraded(summary domain.GradeSummary) {
	if m == nil {
		return
	}
	m.submissionsGraded.WithLabelValues(strconv.FormatBool(summary.Passed)).Inc()
	m.submissionScore.Observe(summary.Percentage)
}

func (m *Metrics) SubmissionRejected(reason string) {
	if m == nil {
		return
	}
	m.submissionsRejected.WithLabelValues(reason).Inc()
}
