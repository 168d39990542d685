package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/infra/memory"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store       *memory.Store
	catalog     *memory.LessonCatalog
	events      *app.Broadcaster
	recorder    *fakeRecorder
	cohorts     *app.CohortService
	lessons     *app.LessonService
	enrollments *app.EnrollmentService
}

func newFixture(t *testing.T, opts ...app.EnrollmentOption) *fixture {
	t.Helper()
	return newFixtureWithEnrollments(t, nil, opts...)
}

// newFixtureWithEnrollments swaps the enrollment repository, e.g. for a failing fake.
func newFixtureWithEnrollments(t *testing.T, enrollments app.EnrollmentRepository, opts ...app.EnrollmentOption) *fixture {
	t.Helper()
	store := memory.NewStoreWithClock(func() time.Time { return fixedNow })
	if enrollments == nil {
		enrollments = store
	}
	f := &fixture{
		store:    store,
		catalog:  memory.NewLessonCatalog(store, time.Minute),
		events:   app.NewBroadcasterWithClock(func() time.Time { return fixedNow }),
		recorder: &fakeRecorder{rejected: map[string]int{}},
	}
	f.cohorts = app.NewCohortService(store, memory.NewLocker(), f.events, nil)
	f.lessons = app.NewLessonService(store, store, f.catalog, nil)

	base := []app.EnrollmentOption{
		app.WithEvents(f.events),
		app.WithRecorder(f.recorder),
		app.WithClock(func() time.Time { return fixedNow }),
	}
	f.enrollments = app.NewEnrollmentService(enrollments, store, store, f.catalog, append(base, opts...)...)
	return f
}

func (f *fixture) openCohort(t *testing.T, name string) domain.Cohort {
	t.Helper()
	ctx := context.Background()
	cohort, err := f.cohorts.CreateCohort(ctx, app.CreateCohortInput{Name: name})
	require.NoError(t, err)
	cohort, err = f.cohorts.SetCohortOpen(ctx, cohort.ID, true)
	require.NoError(t, err)
	return cohort
}

// seedLesson creates a lesson with one three-choice question per key letter and saves the key.
func (f *fixture) seedLesson(t *testing.T, cohortID string, number int, key ...string) domain.Lesson {
	t.Helper()
	ctx := context.Background()
	lesson, err := f.lessons.CreateLesson(ctx, app.CreateLessonInput{
		CohortID: cohortID,
		Number:   number,
		Title:    "Aula",
	})
	require.NoError(t, err)

	questions := make([]domain.Question, len(key))
	correct := make(map[int]string, len(key))
	for i, letter := range key {
		questions[i] = domain.Question{Prompt: "Pergunta", Choices: []string{"um", "dois", "três"}}
		correct[i+1] = letter
	}
	lesson, err = f.lessons.ReplaceQuestions(ctx, lesson.ID, questions)
	require.NoError(t, err)
	_, err = f.lessons.UpsertAnswerKey(ctx, lesson.ID, correct)
	require.NoError(t, err)
	return lesson
}

func answers(letters ...string) []domain.AnswerSubmission {
	out := make([]domain.AnswerSubmission, len(letters))
	for i, l := range letters {
		out[i] = domain.AnswerSubmission{QuestionNumber: i + 1, ChosenChoice: l}
	}
	return out
}

func student(id string) domain.Identity {
	return domain.Identity{UserID: id, Email: id + "@example.com", DisplayName: "Aluno " + id}
}

type fakeRecorder struct {
	mu       sync.Mutex
	graded   []domain.GradeSummary
	rejected map[string]int
}

func (r *fakeRecorder) SubmissionGraded(summary domain.GradeSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graded = append(r.graded, summary)
}

func (r *fakeRecorder) SubmissionRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[reason]++
}

func (r *fakeRecorder) rejections(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected[reason]
}
