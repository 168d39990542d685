package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

var (
	_ app.CohortRepository     = (*Store)(nil)
	_ app.ExclusiveOpener      = (*Store)(nil)
	_ app.LessonRepository     = (*Store)(nil)
	_ app.EnrollmentRepository = (*Store)(nil)
	_ app.AdminRegistry        = (*Store)(nil)
	_ LessonLoader             = (*Store)(nil)
)

// Store is an in-memory document store holding every record kind.
// Records are copied on the way in and out so callers never share slices or maps.
type Store struct {
	now func() time.Time

	mu          sync.RWMutex
	cohorts     map[string]domain.Cohort
	cohortOrder []string
	lessons     map[string]domain.Lesson
	answerKeys  map[string]domain.AnswerKey // by lesson id
	enrollments map[string]domain.Enrollment
	byStudent   map[string]string
	admins      map[string]struct{}
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		now:         now,
		cohorts:     make(map[string]domain.Cohort),
		lessons:     make(map[string]domain.Lesson),
		answerKeys:  make(map[string]domain.AnswerKey),
		enrollments: make(map[string]domain.Enrollment),
		byStudent:   make(map[string]string),
		admins:      make(map[string]struct{}),
	}
}

func (s *Store) CreateCohort(_ context.Context, cohort *domain.Cohort) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cohort.ID == "" {
		cohort.ID = uuid.NewString()
	}
	if cohort.CreatedAt.IsZero() {
		cohort.CreatedAt = s.now().UTC()
	}
	if _, ok := s.cohorts[cohort.ID]; ok {
		return domain.ErrDuplicate
	}
	s.cohorts[cohort.ID] = *cohort
	s.cohortOrder = append(s.cohortOrder, cohort.ID)
	return nil
}

func (s *Store) GetCohort(_ context.Context, id string) (domain.Cohort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cohort, ok := s.cohorts[id]
	if !ok {
		return domain.Cohort{}, domain.ErrNotFound
	}
	return cohort, nil
}

func (s *Store) ListCohorts(_ context.Context) ([]domain.Cohort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Cohort, 0, len(s.cohortOrder))
	for _, id := range s.cohortOrder {
		out = append(out, s.cohorts[id])
	}
	return out, nil
}

func (s *Store) FindOpenCohort(_ context.Context) (domain.Cohort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.cohortOrder {
		if c := s.cohorts[id]; c.IsOpen {
			return c, nil
		}
	}
	return domain.Cohort{}, domain.ErrNotFound
}

func (s *Store) CloseAllCohorts(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeAllLocked()
	return nil
}

func (s *Store) SetCohortOpen(_ context.Context, id string, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cohort, ok := s.cohorts[id]
	if !ok {
		return domain.ErrNotFound
	}
	cohort.IsOpen = open
	s.cohorts[id] = cohort
	return nil
}

// OpenCohortExclusive closes every cohort and opens id in one critical section.
func (s *Store) OpenCohortExclusive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cohort, ok := s.cohorts[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.closeAllLocked()
	cohort.IsOpen = true
	s.cohorts[id] = cohort
	return nil
}

func (s *Store) closeAllLocked() {
	for id, c := range s.cohorts {
		if c.IsOpen {
			c.IsOpen = false
			s.cohorts[id] = c
		}
	}
}

func (s *Store) CreateLesson(_ context.Context, lesson *domain.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if _, ok := s.lessons[lesson.ID]; ok {
		return domain.ErrDuplicate
	}
	s.lessons[lesson.ID] = cloneLesson(*lesson)
	return nil
}

func (s *Store) GetLesson(_ context.Context, id string) (domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lesson, ok := s.lessons[id]
	if !ok {
		return domain.Lesson{}, domain.ErrNotFound
	}
	return cloneLesson(lesson), nil
}

func (s *Store) ListLessons(_ context.Context, cohortID string) ([]domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Lesson, 0)
	for _, l := range s.lessons {
		if l.CohortID == cohortID {
			out = append(out, cloneLesson(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// LoadLessons lets the store back a LessonCatalog directly.
func (s *Store) LoadLessons(ctx context.Context, cohortID string) ([]domain.Lesson, error) {
	return s.ListLessons(ctx, cohortID)
}

func (s *Store) ReplaceQuestions(_ context.Context, lessonID string, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lesson, ok := s.lessons[lessonID]
	if !ok {
		return domain.ErrNotFound
	}
	lesson.Questions = cloneQuestions(questions)
	s.lessons[lessonID] = lesson
	return nil
}

func (s *Store) GetAnswerKey(_ context.Context, lessonID string) (domain.AnswerKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.answerKeys[lessonID]
	if !ok {
		return domain.AnswerKey{}, domain.ErrNotFound
	}
	return cloneAnswerKey(key), nil
}

func (s *Store) UpsertAnswerKey(_ context.Context, key *domain.AnswerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.answerKeys[key.LessonID]; ok {
		key.ID = existing.ID
	} else if key.ID == "" {
		key.ID = uuid.NewString()
	}
	s.answerKeys[key.LessonID] = cloneAnswerKey(*key)
	return nil
}

// AnswerKeyCount reports how many keys exist for a lesson (0 or 1).
func (s *Store) AnswerKeyCount(lessonID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.answerKeys[lessonID]; ok {
		return 1
	}
	return 0
}

func (s *Store) CreateEnrollment(_ context.Context, enrollment *domain.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byStudent[enrollment.StudentID]; ok {
		return domain.ErrDuplicate
	}
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = s.now().UTC()
	}
	if enrollment.Submissions == nil {
		enrollment.Submissions = []domain.Submission{}
	}
	s.enrollments[enrollment.ID] = cloneEnrollment(*enrollment)
	s.byStudent[enrollment.StudentID] = enrollment.ID
	return nil
}

func (s *Store) GetEnrollment(_ context.Context, id string) (domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enrollment, ok := s.enrollments[id]
	if !ok {
		return domain.Enrollment{}, domain.ErrNotFound
	}
	return cloneEnrollment(enrollment), nil
}

func (s *Store) FindEnrollmentByStudent(_ context.Context, studentID string) (domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byStudent[studentID]
	if !ok {
		return domain.Enrollment{}, domain.ErrNotFound
	}
	return cloneEnrollment(s.enrollments[id]), nil
}

func (s *Store) ListEnrollments(_ context.Context, cohortID string) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Enrollment, 0)
	for _, e := range s.enrollments {
		if e.CohortID == cohortID {
			out = append(out, cloneEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ReplaceSubmissions(_ context.Context, id string, version int, submissions []domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enrollment, ok := s.enrollments[id]
	if !ok {
		return domain.ErrNotFound
	}
	if enrollment.Version != version {
		return domain.ErrVersionConflict
	}
	enrollment.Submissions = cloneSubmissions(submissions)
	enrollment.Version++
	s.enrollments[id] = enrollment
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enrollment, ok := s.enrollments[id]
	if !ok {
		return domain.ErrNotFound
	}
	enrollment.Profile = &profile
	s.enrollments[id] = enrollment
	return nil
}

func (s *Store) GrantAdmin(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[userID] = struct{}{}
	return nil
}

func (s *Store) RevokeAdmin(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.admins, userID)
	return nil
}

func (s *Store) IsAdmin(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[userID]
	return ok, nil
}

func cloneQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	for i, q := range in {
		out[i] = domain.Question{Prompt: q.Prompt, Choices: append([]string(nil), q.Choices...)}
	}
	return out
}

func cloneLesson(l domain.Lesson) domain.Lesson {
	l.Questions = cloneQuestions(l.Questions)
	return l
}

func cloneAnswerKey(k domain.AnswerKey) domain.AnswerKey {
	choices := make(map[int]string, len(k.CorrectChoices))
	for n, letter := range k.CorrectChoices {
		choices[n] = letter
	}
	k.CorrectChoices = choices
	return k
}

func cloneSubmissions(in []domain.Submission) []domain.Submission {
	out := make([]domain.Submission, len(in))
	for i, sub := range in {
		sub.Answers = append([]domain.GradedAnswer(nil), sub.Answers...)
		out[i] = sub
	}
	return out
}

func cloneEnrollment(e domain.Enrollment) domain.Enrollment {
	e.Submissions = cloneSubmissions(e.Submissions)
	if e.Profile != nil {
		p := *e.Profile
		e.Profile = &p
	}
	return e
}
