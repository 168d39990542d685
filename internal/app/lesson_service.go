package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// CreateLessonInput describes a new lesson. Questions start empty.
type CreateLessonInput struct {
	CohortID    string    `json:"cohortId" validate:"required"`
	Number      int       `json:"number" validate:"gte=1"`
	Title       string    `json:"title" validate:"required"`
	OpenAt      time.Time `json:"openAt"`
	DueAt       time.Time `json:"dueAt"`
	VideoURL    string    `json:"videoUrl" validate:"omitempty,url"`
	MaterialURL string    `json:"materialUrl" validate:"omitempty,url"`
}

// LessonService manages lessons, their questions and answer keys.
type LessonService struct {
	lessons  LessonRepository
	cohorts  CohortRepository
	catalog  LessonCatalog
	validate *validator.Validate
	logger   *zap.Logger
}

func NewLessonService(lessons LessonRepository, cohorts CohortRepository, catalog LessonCatalog, logger *zap.Logger) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{lessons: lessons, cohorts: cohorts, catalog: catalog, validate: NewValidator(), logger: logger}
}

// CreateLesson adds a lesson to an existing cohort.
func (s *LessonService) CreateLesson(ctx context.Context, in CreateLessonInput) (domain.Lesson, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.Lesson{}, invalid(err)
	}
	if _, err := s.cohorts.GetCohort(ctx, in.CohortID); err != nil {
		return domain.Lesson{}, storeErr("load cohort", err)
	}

	lesson := domain.Lesson{
		CohortID:    in.CohortID,
		Number:      in.Number,
		Title:       in.Title,
		OpenAt:      in.OpenAt,
		DueAt:       in.DueAt,
		VideoURL:    in.VideoURL,
		MaterialURL: in.MaterialURL,
		Questions:   []domain.Question{},
	}
	if err := s.lessons.CreateLesson(ctx, &lesson); err != nil {
		return domain.Lesson{}, storeErr("create lesson", err)
	}
	s.invalidate(ctx, lesson.CohortID)
	return lesson, nil
}

// GetLesson loads a lesson straight from the store.
func (s *LessonService) GetLesson(ctx context.Context, id string) (domain.Lesson, error) {
	lesson, err := s.lessons.GetLesson(ctx, id)
	if err != nil {
		return domain.Lesson{}, storeErr("load lesson", err)
	}
	return lesson, nil
}

// ListLessons returns a cohort's lessons ordered by number, served from the catalog.
func (s *LessonService) ListLessons(ctx context.Context, cohortID string) ([]domain.Lesson, error) {
	lessons, err := s.catalog.Lessons(ctx, cohortID)
	if err != nil {
		return nil, storeErr("list lessons", err)
	}
	out := make([]domain.Lesson, len(lessons))
	copy(out, lessons)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// ReplaceQuestions overwrites the whole question list of a lesson.
func (s *LessonService) ReplaceQuestions(ctx context.Context, lessonID string, questions []domain.Question) (domain.Lesson, error) {
	for i := range questions {
		if err := s.validate.Struct(questions[i]); err != nil {
			return domain.Lesson{}, invalid(fmt.Errorf("question %d: %w", i+1, err))
		}
	}
	lesson, err := s.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return domain.Lesson{}, storeErr("load lesson", err)
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	if err := s.lessons.ReplaceQuestions(ctx, lessonID, questions); err != nil {
		return domain.Lesson{}, storeErr("replace questions", err)
	}
	s.invalidate(ctx, lesson.CohortID)

	lesson.Questions = questions
	return lesson, nil
}

// UpsertAnswerKey saves the correct letters of a lesson, creating the key on first save.
func (s *LessonService) UpsertAnswerKey(ctx context.Context, lessonID string, correctChoices map[int]string) (domain.AnswerKey, error) {
	for number, letter := range correctChoices {
		if number < 1 {
			return domain.AnswerKey{}, invalid(fmt.Errorf("question number %d out of range", number))
		}
		if letter == "" {
			return domain.AnswerKey{}, invalid(fmt.Errorf("question %d has no correct choice", number))
		}
	}
	if _, err := s.lessons.GetLesson(ctx, lessonID); err != nil {
		return domain.AnswerKey{}, storeErr("load lesson", err)
	}

	key := domain.AnswerKey{LessonID: lessonID, CorrectChoices: correctChoices}
	if err := s.lessons.UpsertAnswerKey(ctx, &key); err != nil {
		return domain.AnswerKey{}, storeErr("save answer key", err)
	}
	s.logger.Info("answer key saved", zap.String("lesson_id", lessonID), zap.Int("questions", len(correctChoices)))
	return key, nil
}

// GetAnswerKey returns the key of a lesson or domain.ErrAnswerKeyMissing.
func (s *LessonService) GetAnswerKey(ctx context.Context, lessonID string) (domain.AnswerKey, error) {
	key, err := s.lessons.GetAnswerKey(ctx, lessonID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AnswerKey{}, domain.ErrAnswerKeyMissing
	}
	if err != nil {
		return domain.AnswerKey{}, storeErr("load answer key", err)
	}
	return key, nil
}

// invalidate drops the cohort's catalog entry. The write has already been
// committed, so a failure here only leaves a stale entry until its TTL.
func (s *LessonService) invalidate(ctx context.Context, cohortID string) {
	if err := s.catalog.Invalidate(ctx, cohortID); err != nil {
		s.logger.Warn("lesson catalog invalidation failed", zap.String("cohort_id", cohortID), zap.Error(err))
	}
}
