package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// EnrollmentReport is the admin view of one enrollment with graded results.
type EnrollmentReport struct {
	domain.Enrollment
	Results []domain.AnnotatedSubmission `json:"results"`
}

// EnrollmentOption customizes EnrollmentService.
type EnrollmentOption func(*EnrollmentService)

// WithPassThreshold sets the pass percentage (0-100).
func WithPassThreshold(threshold float64) EnrollmentOption {
	return func(s *EnrollmentService) { s.passThreshold = threshold }
}

// WithEvents publishes enrollment and submission events.
func WithEvents(events EventPublisher) EnrollmentOption {
	return func(s *EnrollmentService) { s.events = events }
}

// WithRecorder reports grading outcomes.
func WithRecorder(recorder SubmissionRecorder) EnrollmentOption {
	return func(s *EnrollmentService) { s.recorder = recorder }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) EnrollmentOption {
	return func(s *EnrollmentService) { s.logger = logger }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) EnrollmentOption {
	return func(s *EnrollmentService) { s.now = now }
}

// EnrollmentService enrolls students, grades quiz submissions and reports results.
type EnrollmentService struct {
	enrollments   EnrollmentRepository
	cohorts       CohortRepository
	lessons       LessonRepository
	catalog       LessonCatalog
	events        EventPublisher
	recorder      SubmissionRecorder
	passThreshold float64
	validate      *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

func NewEnrollmentService(enrollments EnrollmentRepository, cohorts CohortRepository, lessons LessonRepository, catalog LessonCatalog, opts ...EnrollmentOption) *EnrollmentService {
	s := &EnrollmentService{
		enrollments:   enrollments,
		cohorts:       cohorts,
		lessons:       lessons,
		catalog:       catalog,
		passThreshold: DefaultPassThreshold,
		validate:      NewValidator(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.recorder == nil {
		s.recorder = noopRecorder{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// PassThreshold returns the configured pass percentage.
func (s *EnrollmentService) PassThreshold() float64 {
	return s.passThreshold
}

// EnsureEnrolled returns the student's enrollment, creating it in the open
// cohort on first call. An existing enrollment is never re-bound.
func (s *EnrollmentService) EnsureEnrolled(ctx context.Context, identity domain.Identity) (domain.Enrollment, error) {
	if identity.UserID == "" {
		return domain.Enrollment{}, invalid(errors.New("student id is required"))
	}

	existing, err := s.enrollments.FindEnrollmentByStudent(ctx, identity.UserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Enrollment{}, storeErr("load enrollment", err)
	}

	cohort, err := s.cohorts.FindOpenCohort(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Enrollment{}, domain.ErrNoOpenCohort
	}
	if err != nil {
		return domain.Enrollment{}, storeErr("find open cohort", err)
	}

	enrollment := domain.Enrollment{
		StudentID:   identity.UserID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		CohortID:    cohort.ID,
		Submissions: []domain.Submission{},
	}
	err = s.enrollments.CreateEnrollment(ctx, &enrollment)
	if errors.Is(err, domain.ErrDuplicate) {
		// lost a race with a concurrent first call; the winner's record stands
		existing, err := s.enrollments.FindEnrollmentByStudent(ctx, identity.UserID)
		if err != nil {
			return domain.Enrollment{}, storeErr("load enrollment", err)
		}
		return existing, nil
	}
	if err != nil {
		return domain.Enrollment{}, storeErr("create enrollment", err)
	}

	s.logger.Info("student enrolled", zap.String("student_id", identity.UserID), zap.String("cohort_id", cohort.ID))
	s.events.Publish(domain.Event{Type: domain.EventStudentEnrolled, CohortID: cohort.ID, StudentID: identity.UserID})
	return enrollment, nil
}

// Enrollment returns the student's enrollment or domain.ErrNotEnrolled.
func (s *EnrollmentService) Enrollment(ctx context.Context, studentID string) (domain.Enrollment, error) {
	enrollment, err := s.enrollments.FindEnrollmentByStudent(ctx, studentID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Enrollment{}, domain.ErrNotEnrolled
	}
	if err != nil {
		return domain.Enrollment{}, storeErr("load enrollment", err)
	}
	return enrollment, nil
}

// HasSubmitted reports whether the student already submitted the lesson's quiz.
// Store failures are logged and reported as false.
func (s *EnrollmentService) HasSubmitted(ctx context.Context, studentID, lessonID string) bool {
	enrollment, err := s.enrollments.FindEnrollmentByStudent(ctx, studentID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("has-submitted lookup failed", zap.String("student_id", studentID), zap.Error(err))
		}
		return false
	}
	_, ok := enrollment.Submission(lessonID)
	return ok
}

// Submit grades the student's answers for a lesson and appends the submission.
// Each lesson accepts exactly one submission per student.
func (s *EnrollmentService) Submit(ctx context.Context, studentID, lessonID string, answers []domain.AnswerSubmission) (domain.Submission, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		enrollment, err := s.enrollments.FindEnrollmentByStudent(ctx, studentID)
		if errors.Is(err, domain.ErrNotFound) {
			s.recorder.SubmissionRejected("not_enrolled")
			return domain.Submission{}, domain.ErrNotEnrolled
		}
		if err != nil {
			return domain.Submission{}, storeErr("load enrollment", err)
		}
		if _, ok := enrollment.Submission(lessonID); ok {
			s.recorder.SubmissionRejected("already_submitted")
			return domain.Submission{}, domain.ErrAlreadySubmitted
		}

		key, err := s.lessons.GetAnswerKey(ctx, lessonID)
		if errors.Is(err, domain.ErrNotFound) {
			s.recorder.SubmissionRejected("answer_key_missing")
			return domain.Submission{}, domain.ErrAnswerKeyMissing
		}
		if err != nil {
			return domain.Submission{}, storeErr("load answer key", err)
		}
		lesson, err := s.lessons.GetLesson(ctx, lessonID)
		if err != nil {
			return domain.Submission{}, storeErr("load lesson", err)
		}

		graded, err := gradeAnswers(lesson, key, answers)
		if err != nil {
			s.recorder.SubmissionRejected("incomplete")
			return domain.Submission{}, err
		}

		submission := domain.Submission{
			LessonID:    lessonID,
			SubmittedAt: s.now().UTC(),
			Answers:     graded,
		}
		submissions := make([]domain.Submission, 0, len(enrollment.Submissions)+1)
		submissions = append(submissions, enrollment.Submissions...)
		submissions = append(submissions, submission)

		err = s.enrollments.ReplaceSubmissions(ctx, enrollment.ID, enrollment.Version, submissions)
		if errors.Is(err, domain.ErrVersionConflict) {
			// the enrollment changed under us; re-read decides between retry and AlreadySubmitted
			s.logger.Debug("enrollment version conflict", zap.String("student_id", studentID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return domain.Submission{}, storeErr("save submission", err)
		}

		summary := s.GradeSummary(submission)
		s.recorder.SubmissionGraded(summary)
		s.events.Publish(domain.Event{
			Type:      domain.EventSubmissionRecorded,
			CohortID:  enrollment.CohortID,
			LessonID:  lessonID,
			StudentID: studentID,
		})
		s.logger.Info("submission recorded",
			zap.String("student_id", studentID),
			zap.String("lesson_id", lessonID),
			zap.Int("correct", summary.CorrectCount),
			zap.Int("total", summary.TotalCount),
		)
		return submission, nil
	}
	return domain.Submission{}, fmt.Errorf("save submission: %w", domain.ErrVersionConflict)
}

// GradeSummary derives counts, percentage and pass/fail with the configured threshold.
func (s *EnrollmentService) GradeSummary(submission domain.Submission) domain.GradeSummary {
	return Summarize(submission, s.passThreshold)
}

// ListSubmissions returns the student's submissions joined with their lessons,
// ordered by lesson number. Store failures are logged and yield an empty list.
func (s *EnrollmentService) ListSubmissions(ctx context.Context, studentID string) []domain.AnnotatedSubmission {
	enrollment, err := s.enrollments.FindEnrollmentByStudent(ctx, studentID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("list submissions failed", zap.String("student_id", studentID), zap.Error(err))
		}
		return []domain.AnnotatedSubmission{}
	}
	lessons, err := s.catalog.Lessons(ctx, enrollment.CohortID)
	if err != nil {
		s.logger.Warn("list submissions: lesson catalog failed", zap.String("cohort_id", enrollment.CohortID), zap.Error(err))
		return []domain.AnnotatedSubmission{}
	}
	return s.annotate(enrollment.Submissions, lessons)
}

// ListEnrollments returns every enrollment of a cohort with graded results.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, cohortID string) ([]EnrollmentReport, error) {
	if _, err := s.cohorts.GetCohort(ctx, cohortID); err != nil {
		return nil, storeErr("load cohort", err)
	}

	var (
		enrollments []domain.Enrollment
		lessons     []domain.Lesson
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if enrollments, err = s.enrollments.ListEnrollments(gctx, cohortID); err != nil {
			return storeErr("list enrollments", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if lessons, err = s.catalog.Lessons(gctx, cohortID); err != nil {
			return storeErr("list lessons", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reports := make([]EnrollmentReport, 0, len(enrollments))
	for _, e := range enrollments {
		reports = append(reports, EnrollmentReport{Enrollment: e, Results: s.annotate(e.Submissions, lessons)})
	}
	return reports, nil
}

// GetEnrollment returns one enrollment with graded results.
func (s *EnrollmentService) GetEnrollment(ctx context.Context, id string) (EnrollmentReport, error) {
	enrollment, err := s.enrollments.GetEnrollment(ctx, id)
	if err != nil {
		return EnrollmentReport{}, storeErr("load enrollment", err)
	}
	lessons, err := s.catalog.Lessons(ctx, enrollment.CohortID)
	if err != nil {
		return EnrollmentReport{}, storeErr("list lessons", err)
	}
	return EnrollmentReport{Enrollment: enrollment, Results: s.annotate(enrollment.Submissions, lessons)}, nil
}

// RemoveSubmission deletes a student's submission for a lesson. Administrative
// only; students cannot retract a submission.
func (s *EnrollmentService) RemoveSubmission(ctx context.Context, enrollmentID, lessonID string) error {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		enrollment, err := s.enrollments.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return storeErr("load enrollment", err)
		}

		kept := make([]domain.Submission, 0, len(enrollment.Submissions))
		for _, sub := range enrollment.Submissions {
			if sub.LessonID != lessonID {
				kept = append(kept, sub)
			}
		}
		if len(kept) == len(enrollment.Submissions) {
			return fmt.Errorf("submission for lesson %s: %w", lessonID, domain.ErrNotFound)
		}

		err = s.enrollments.ReplaceSubmissions(ctx, enrollment.ID, enrollment.Version, kept)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return storeErr("remove submission", err)
		}

		s.logger.Info("submission removed", zap.String("enrollment_id", enrollmentID), zap.String("lesson_id", lessonID))
		s.events.Publish(domain.Event{
			Type:      domain.EventSubmissionRemoved,
			CohortID:  enrollment.CohortID,
			LessonID:  lessonID,
			StudentID: enrollment.StudentID,
		})
		return nil
	}
	return fmt.Errorf("remove submission: %w", domain.ErrVersionConflict)
}

// UpdateProfile validates and stores the student's contact data.
func (s *EnrollmentService) UpdateProfile(ctx context.Context, studentID string, profile domain.Profile) (domain.Enrollment, error) {
	if err := s.validate.Struct(profile); err != nil {
		return domain.Enrollment{}, invalid(err)
	}
	enrollment, err := s.Enrollment(ctx, studentID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if err := s.enrollments.UpdateProfile(ctx, enrollment.ID, profile); err != nil {
		return domain.Enrollment{}, storeErr("update profile", err)
	}
	enrollment.Profile = &profile
	return enrollment, nil
}

func (s *EnrollmentService) annotate(submissions []domain.Submission, lessons []domain.Lesson) []domain.AnnotatedSubmission {
	byID := make(map[string]domain.Lesson, len(lessons))
	for _, l := range lessons {
		byID[l.ID] = l
	}

	out := make([]domain.AnnotatedSubmission, 0, len(submissions))
	for _, sub := range submissions {
		annotated := domain.AnnotatedSubmission{Submission: sub, Summary: s.GradeSummary(sub)}
		if lesson, ok := byID[sub.LessonID]; ok {
			lesson := lesson
			annotated.Lesson = &lesson
		}
		out = append(out, annotated)
	}

	// lessons missing from the catalog sort last
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := out[i].Lesson, out[j].Lesson
		switch {
		case li == nil && lj == nil:
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		case li == nil:
			return false
		case lj == nil:
			return true
		}
		return li.Number < lj.Number
	})
	return out
}
