package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/auth"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/infra/memory"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/metrics"
)

const adminID = "admin-1"

type testEnv struct {
	server  *httptest.Server
	store   *memory.Store
	tokens  *auth.Service
	events  *app.Broadcaster
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, enrollments app.EnrollmentRepository, now func() time.Time) *testEnv {
	t.Helper()
	store := memory.NewStore()
	if enrollments == nil {
		enrollments = store
	}
	if now == nil {
		now = time.Now
	}
	catalog := memory.NewLessonCatalog(store, time.Minute)
	events := app.NewBroadcaster()
	m := metrics.New()
	tokens := auth.NewService("test-secret", time.Hour)
	require.NoError(t, store.GrantAdmin(context.Background(), adminID))

	router := NewRouter(Deps{
		Cohorts:     app.NewCohortService(store, memory.NewLocker(), events, nil),
		Lessons:     app.NewLessonService(store, store, catalog, nil),
		Enrollments: app.NewEnrollmentService(enrollments, store, store, catalog, app.WithEvents(events), app.WithRecorder(m)),
		Admins:      store,
		Tokens:      tokens,
		Events:      events,
		Metrics:     m,
		Now:         now,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store, tokens: tokens, events: events, metrics: m}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.tokens.Issue(domain.Identity{UserID: userID, Email: userID + "@example.com", DisplayName: userID})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(raw, &body))
	return body.Error.Code
}

// seedOpenLesson creates an open cohort with one two-question lesson keyed "a","b".
func (e *testEnv) seedOpenLesson(t *testing.T, dueAt time.Time) (domain.Cohort, domain.Lesson) {
	t.Helper()
	admin := e.token(t, adminID)

	status, raw := e.do(t, http.MethodPost, "/api/admin/cohorts", admin, map[string]any{"name": "Turma 2024"})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var cohort domain.Cohort
	require.NoError(t, json.Unmarshal(raw, &cohort))

	status, raw = e.do(t, http.MethodPut, "/api/admin/cohorts/"+cohort.ID+"/open", admin, map[string]any{"open": true})
	require.Equal(t, http.StatusOK, status, string(raw))

	lessonBody := map[string]any{"number": 1, "title": "Gênesis"}
	if !dueAt.IsZero() {
		lessonBody["dueAt"] = dueAt
	}
	status, raw = e.do(t, http.MethodPost, "/api/admin/cohorts/"+cohort.ID+"/lessons", admin, lessonBody)
	require.Equal(t, http.StatusCreated, status, string(raw))
	var lesson domain.Lesson
	require.NoError(t, json.Unmarshal(raw, &lesson))

	status, raw = e.do(t, http.MethodPut, "/api/admin/lessons/"+lesson.ID+"/questions", admin, map[string]any{
		"questions": []domain.Question{
			{Prompt: "Quem construiu a arca?", Choices: []string{"Noé", "Moisés"}},
			{Prompt: "Quantos dias durou a criação?", Choices: []string{"5", "6", "7"}},
		},
	})
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = e.do(t, http.MethodPut, "/api/admin/lessons/"+lesson.ID+"/answer-key", admin, map[string]any{
		"correctChoices": map[string]string{"1": "a", "2": "b"},
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	return cohort, lesson
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	status, raw := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(raw))
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	status, raw := env.do(t, http.MethodGet, "/api/me/lessons", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(t, raw))

	status, _ = env.do(t, http.MethodGet, "/api/me/lessons", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutesRejectStudents(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	status, raw := env.do(t, http.MethodGet, "/api/admin/cohorts", env.token(t, "student-1"), nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", errorCode(t, raw))

	status, _ = env.do(t, http.MethodGet, "/api/admin/cohorts", env.token(t, adminID), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestEnrollWithoutOpenCohort(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	status, raw := env.do(t, http.MethodPost, "/api/me/enrollment", env.token(t, "student-1"), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "no_open_cohort", errorCode(t, raw))
}

func TestStudentQuizFlow(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	cohort, lesson := env.seedOpenLesson(t, time.Time{})
	student := env.token(t, "student-1")

	status, raw := env.do(t, http.MethodPost, "/api/me/enrollment", student, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var enrollment domain.Enrollment
	require.NoError(t, json.Unmarshal(raw, &enrollment))
	assert.Equal(t, cohort.ID, enrollment.CohortID)

	status, raw = env.do(t, http.MethodGet, "/api/me/lessons", student, nil)
	require.Equal(t, http.StatusOK, status)
	var lessons []lessonView
	require.NoError(t, json.Unmarshal(raw, &lessons))
	require.Len(t, lessons, 1)
	assert.False(t, lessons[0].Submitted)
	assert.Len(t, lessons[0].Questions, 2)

	answers := map[string]any{"answers": []domain.AnswerSubmission{
		{QuestionNumber: 1, ChosenChoice: "A"},
		{QuestionNumber: 2, ChosenChoice: "b"},
	}}
	status, raw = env.do(t, http.MethodPost, "/api/me/lessons/"+lesson.ID+"/submission", student, answers)
	require.Equal(t, http.StatusCreated, status, string(raw))
	var submitted submitResponse
	require.NoError(t, json.Unmarshal(raw, &submitted))
	assert.Equal(t, domain.GradeSummary{CorrectCount: 2, TotalCount: 2, Percentage: 100, Passed: true}, submitted.Summary)

	status, raw = env.do(t, http.MethodPost, "/api/me/lessons/"+lesson.ID+"/submission", student, answers)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_submitted", errorCode(t, raw))

	status, raw = env.do(t, http.MethodGet, "/api/me/lessons/"+lesson.ID, student, nil)
	require.Equal(t, http.StatusOK, status)
	var detail struct {
		Submitted bool                        `json:"submitted"`
		Result    *domain.AnnotatedSubmission `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &detail))
	assert.True(t, detail.Submitted)
	require.NotNil(t, detail.Result)
	assert.True(t, detail.Result.Summary.Passed)

	status, raw = env.do(t, http.MethodGet, "/api/me/submissions", student, nil)
	require.Equal(t, http.StatusOK, status)
	var results submissionsResponse
	require.NoError(t, json.Unmarshal(raw, &results))
	assert.Equal(t, 66.0, results.PassThreshold)
	require.Len(t, results.Results, 1)
	require.NotNil(t, results.Results[0].Lesson)
	assert.Equal(t, "Gênesis", results.Results[0].Lesson.Title)
}

func TestAdminReviewAndRemoveSubmission(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	cohort, lesson := env.seedOpenLesson(t, time.Time{})
	admin := env.token(t, adminID)
	student := env.token(t, "student-1")

	status, _ := env.do(t, http.MethodPost, "/api/me/enrollment", student, nil)
	require.Equal(t, http.StatusOK, status)
	answers := map[string]any{"answers": []domain.AnswerSubmission{
		{QuestionNumber: 1, ChosenChoice: "b"},
		{QuestionNumber: 2, ChosenChoice: "b"},
	}}
	status, _ = env.do(t, http.MethodPost, "/api/me/lessons/"+lesson.ID+"/submission", student, answers)
	require.Equal(t, http.StatusCreated, status)

	status, raw := env.do(t, http.MethodGet, "/api/admin/cohorts/"+cohort.ID+"/enrollments", admin, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	var reports []app.EnrollmentReport
	require.NoError(t, json.Unmarshal(raw, &reports))
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Results, 1)
	assert.Equal(t, 50.0, reports[0].Results[0].Summary.Percentage)
	assert.False(t, reports[0].Results[0].Summary.Passed)

	enrollmentID := reports[0].ID
	status, _ = env.do(t, http.MethodDelete, "/api/admin/enrollments/"+enrollmentID+"/submissions/"+lesson.ID, admin, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, raw = env.do(t, http.MethodDelete, "/api/admin/enrollments/"+enrollmentID+"/submissions/"+lesson.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errorCode(t, raw))

	status, _ = env.do(t, http.MethodPost, "/api/me/lessons/"+lesson.ID+"/submission", student, answers)
	assert.Equal(t, http.StatusCreated, status)
}

func TestSubmitRejectsIncompleteAnswers(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	_, lesson := env.seedOpenLesson(t, time.Time{})
	student := env.token(t, "student-1")
	status, _ := env.do(t, http.MethodPost, "/api/me/enrollment", student, nil)
	require.Equal(t, http.StatusOK, status)

	status, raw := env.do(t, http.MethodPost, "/api/me/lessons/"+lesson.ID+"/submission", student, map[string]any{
		"answers": []domain.AnswerSubmission{{QuestionNumber: 1, ChosenChoice: "a"}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "incomplete_submission", errorCode(t, raw))
}

func TestSubmitPastDueLesson(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, nil, func() time.Time { return now })
	_, lesson := env.seedOpenLesson(t, now.Add(-time.Hour))
	student := env.token(t, "student-1")
	status, _ := env.do(t, http.MethodPost, "/api/me/enrollment", student, nil)
	require.Equal(t, http.StatusOK, status)

	status, raw := env.do(t, http.MethodPost, "/api/me/lessons/"+lesson.ID+"/submission", student, map[string]any{
		"answers": []domain.AnswerSubmission{{QuestionNumber: 1, ChosenChoice: "a"}, {QuestionNumber: 2, ChosenChoice: "b"}},
	})
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "quiz_closed", errorCode(t, raw))
}

func TestLessonOfAnotherCohortIsHidden(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	_, lesson := env.seedOpenLesson(t, time.Time{})
	admin := env.token(t, adminID)

	// a second cohort opens; the new student lands there and cannot see the first cohort's lesson
	status, raw := env.do(t, http.MethodPost, "/api/admin/cohorts", admin, map[string]any{"name": "Turma 2025"})
	require.Equal(t, http.StatusCreated, status)
	var next domain.Cohort
	require.NoError(t, json.Unmarshal(raw, &next))
	status, _ = env.do(t, http.MethodPut, "/api/admin/cohorts/"+next.ID+"/open", admin, map[string]any{"open": true})
	require.Equal(t, http.StatusOK, status)

	student := env.token(t, "student-2")
	status, _ = env.do(t, http.MethodPost, "/api/me/enrollment", student, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/me/lessons/"+lesson.ID, student, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateProfileValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.seedOpenLesson(t, time.Time{})
	student := env.token(t, "student-1")
	status, _ := env.do(t, http.MethodPost, "/api/me/enrollment", student, nil)
	require.Equal(t, http.StatusOK, status)

	profile := domain.Profile{
		Phone: "11 99999-0000",
		Address: domain.Address{
			StreetType: "Rua", StreetName: "das Flores", Number: "10",
			District: "Centro", City: "São Paulo", State: "SP", PostalCode: "01000-000",
		},
	}
	status, raw := env.do(t, http.MethodPut, "/api/me/profile", student, profile)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", errorCode(t, raw))

	profile.Phone = "(11) 99999-0000"
	status, raw = env.do(t, http.MethodPut, "/api/me/profile", student, profile)
	require.Equal(t, http.StatusOK, status, string(raw))
	var enrollment domain.Enrollment
	require.NoError(t, json.Unmarshal(raw, &enrollment))
	require.NotNil(t, enrollment.Profile)
	assert.Equal(t, "São Paulo", enrollment.Profile.Address.City)
}

func TestStoreFailureMapsToServiceUnavailable(t *testing.T) {
	store := &failingEnrollments{Store: memory.NewStore(), err: errors.New("connection refused")}
	env := newTestEnv(t, store, nil)

	status, raw := env.do(t, http.MethodPost, "/api/me/enrollment", env.token(t, "student-1"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "store_unavailable", errorCode(t, raw))
	assert.False(t, strings.Contains(string(raw), "connection refused"))
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/admin/cohorts", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token(t, adminID))
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.do(t, http.MethodGet, "/healthz", "", nil)

	status, raw := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

type failingEnrollments struct {
	*memory.Store
	err error
}

func (f *failingEnrollments) FindEnrollmentByStudent(context.Context, string) (domain.Enrollment, error) {
	return domain.Enrollment{}, f.err
}
