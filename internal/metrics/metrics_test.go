package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

func TestSubmissionCounters(t *testing.T) {
	m := New()

	m.SubmissionGraded(domain.GradeSummary{CorrectCount: 3, TotalCount: 3, Percentage: 100, Passed: true})
	m.SubmissionGraded(domain.GradeSummary{CorrectCount: 1, TotalCount: 3, Percentage: 33.3, Passed: false})
	m.SubmissionRejected("already_submitted")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissionsGraded.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissionsGraded.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissionsRejected.WithLabelValues("already_submitted")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/api/me/lessons", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",route="/api/me/lessons",status="200"} 1`))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SubmissionGraded(domain.GradeSummary{})
	m.SubmissionRejected("x")
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
