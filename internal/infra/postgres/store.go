package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

var (
	_ app.CohortRepository     = (*Store)(nil)
	_ app.ExclusiveOpener      = (*Store)(nil)
	_ app.LessonRepository     = (*Store)(nil)
	_ app.EnrollmentRepository = (*Store)(nil)
	_ app.AdminRegistry        = (*Store)(nil)
)

// Store persists cohorts, lessons, answer keys, enrollments and admins with bun.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) CreateCohort(ctx context.Context, cohort *domain.Cohort) error {
	if cohort.ID == "" {
		cohort.ID = uuid.NewString()
	}
	if cohort.CreatedAt.IsZero() {
		cohort.CreatedAt = s.now().UTC()
	}
	row := cohortRow{
		ID:        cohort.ID,
		Name:      cohort.Name,
		IsOpen:    cohort.IsOpen,
		OpensAt:   cohort.OpensAt,
		ClosesAt:  cohort.ClosesAt,
		CreatedAt: cohort.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert cohort: %w", err)
	}
	return nil
}

func (s *Store) GetCohort(ctx context.Context, id string) (domain.Cohort, error) {
	var row cohortRow
	err := s.db.NewSelect().Model(&row).Where("c.id = ?", id).Scan(ctx)
	if isNoRows(err) {
		return domain.Cohort{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Cohort{}, fmt.Errorf("select cohort: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListCohorts(ctx context.Context) ([]domain.Cohort, error) {
	var rows []cohortRow
	if err := s.db.NewSelect().Model(&rows).Order("c.created_at ASC", "c.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select cohorts: %w", err)
	}
	out := make([]domain.Cohort, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) FindOpenCohort(ctx context.Context) (domain.Cohort, error) {
	var row cohortRow
	err := s.db.NewSelect().Model(&row).
		Where("c.is_open").
		Order("c.created_at ASC").
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return domain.Cohort{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Cohort{}, fmt.Errorf("select open cohort: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) CloseAllCohorts(ctx context.Context) error {
	return closeAll(ctx, s.db)
}

func (s *Store) SetCohortOpen(ctx context.Context, id string, open bool) error {
	return setOpen(ctx, s.db, id, open)
}

// OpenCohortExclusive closes every cohort and opens id in one transaction.
// A concurrent opener trips the single-open index and gets ErrVersionConflict.
func (s *Store) OpenCohortExclusive(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := closeAll(ctx, tx); err != nil {
			return err
		}
		return setOpen(ctx, tx, id, true)
	})
}

func closeAll(ctx context.Context, db bun.IDB) error {
	_, err := db.NewUpdate().
		Model((*cohortRow)(nil)).
		Set("is_open = FALSE").
		Where("is_open").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("close cohorts: %w", err)
	}
	return nil
}

func setOpen(ctx context.Context, db bun.IDB, id string, open bool) error {
	res, err := db.NewUpdate().
		Model((*cohortRow)(nil)).
		Set("is_open = ?", open).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("update cohort: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) CreateLesson(ctx context.Context, lesson *domain.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.Questions == nil {
		lesson.Questions = []domain.Question{}
	}
	row := lessonRow{
		ID:          lesson.ID,
		CohortID:    lesson.CohortID,
		Number:      lesson.Number,
		Title:       lesson.Title,
		OpenAt:      lesson.OpenAt,
		DueAt:       lesson.DueAt,
		VideoURL:    lesson.VideoURL,
		MaterialURL: lesson.MaterialURL,
		Questions:   lesson.Questions,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

func (s *Store) GetLesson(ctx context.Context, id string) (domain.Lesson, error) {
	var row lessonRow
	err := s.db.NewSelect().Model(&row).Where("l.id = ?", id).Scan(ctx)
	if isNoRows(err) {
		return domain.Lesson{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("select lesson: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListLessons(ctx context.Context, cohortID string) ([]domain.Lesson, error) {
	var rows []lessonRow
	err := s.db.NewSelect().Model(&rows).
		Where("l.cohort_id = ?", cohortID).
		Order("l.number ASC", "l.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select lessons: %w", err)
	}
	out := make([]domain.Lesson, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ReplaceQuestions(ctx context.Context, lessonID string, questions []domain.Question) error {
	if questions == nil {
		questions = []domain.Question{}
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model((*lessonRow)(nil)).
		Set("questions = ?::jsonb", string(raw)).
		Where("id = ?", lessonID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update questions: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) GetAnswerKey(ctx context.Context, lessonID string) (domain.AnswerKey, error) {
	var row answerKeyRow
	err := s.db.NewSelect().Model(&row).Where("ak.lesson_id = ?", lessonID).Scan(ctx)
	if isNoRows(err) {
		return domain.AnswerKey{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AnswerKey{}, fmt.Errorf("select answer key: %w", err)
	}
	return domain.AnswerKey{ID: row.ID, LessonID: row.LessonID, CorrectChoices: row.CorrectChoices}, nil
}

// UpsertAnswerKey keeps one key per lesson; the existing id survives an overwrite.
func (s *Store) UpsertAnswerKey(ctx context.Context, key *domain.AnswerKey) error {
	row := answerKeyRow{
		ID:             key.ID,
		LessonID:       key.LessonID,
		CorrectChoices: key.CorrectChoices,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CorrectChoices == nil {
		row.CorrectChoices = map[int]string{}
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (lesson_id) DO UPDATE").
		Set("correct_choices = EXCLUDED.correct_choices").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert answer key: %w", err)
	}
	key.ID = row.ID
	return nil
}

func (s *Store) CreateEnrollment(ctx context.Context, enrollment *domain.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = s.now().UTC()
	}
	if enrollment.Submissions == nil {
		enrollment.Submissions = []domain.Submission{}
	}
	row := enrollmentRow{
		ID:          enrollment.ID,
		StudentID:   enrollment.StudentID,
		Email:       enrollment.Email,
		DisplayName: enrollment.DisplayName,
		CohortID:    enrollment.CohortID,
		Profile:     enrollment.Profile,
		Submissions: enrollment.Submissions,
		Version:     enrollment.Version,
		CreatedAt:   enrollment.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

func (s *Store) GetEnrollment(ctx context.Context, id string) (domain.Enrollment, error) {
	return s.findEnrollment(ctx, "e.id = ?", id)
}

func (s *Store) FindEnrollmentByStudent(ctx context.Context, studentID string) (domain.Enrollment, error) {
	return s.findEnrollment(ctx, "e.student_id = ?", studentID)
}

func (s *Store) findEnrollment(ctx context.Context, where string, arg string) (domain.Enrollment, error) {
	var row enrollmentRow
	err := s.db.NewSelect().Model(&row).Where(where, arg).Scan(ctx)
	if isNoRows(err) {
		return domain.Enrollment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("select enrollment: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListEnrollments(ctx context.Context, cohortID string) ([]domain.Enrollment, error) {
	var rows []enrollmentRow
	err := s.db.NewSelect().Model(&rows).
		Where("e.cohort_id = ?", cohortID).
		Order("e.created_at ASC", "e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select enrollments: %w", err)
	}
	out := make([]domain.Enrollment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ReplaceSubmissions rewrites the submissions only while the stored version
// still equals version, then bumps it.
func (s *Store) ReplaceSubmissions(ctx context.Context, id string, version int, submissions []domain.Submission) error {
	if submissions == nil {
		submissions = []domain.Submission{}
	}
	raw, err := json.Marshal(submissions)
	if err != nil {
		return fmt.Errorf("marshal submissions: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model((*enrollmentRow)(nil)).
		Set("submissions = ?::jsonb", string(raw)).
		Set("version = version + 1").
		Where("id = ?", id).
		Where("version = ?", version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update submissions: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	exists, err := s.db.NewSelect().Model((*enrollmentRow)(nil)).Where("e.id = ?", id).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrVersionConflict
}

func (s *Store) UpdateProfile(ctx context.Context, id string, profile domain.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model((*enrollmentRow)(nil)).
		Set("profile = ?::jsonb", string(raw)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) GrantAdmin(ctx context.Context, userID string) error {
	row := adminRow{UserID: userID, GrantedAt: s.now().UTC()}
	_, err := s.db.NewInsert().Model(&row).On("CONFLICT (user_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("grant admin: %w", err)
	}
	return nil
}

func (s *Store) RevokeAdmin(ctx context.Context, userID string) error {
	_, err := s.db.NewDelete().Model((*adminRow)(nil)).Where("user_id = ?", userID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke admin: %w", err)
	}
	return nil
}

func (s *Store) IsAdmin(ctx context.Context, userID string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*adminRow)(nil)).Where("a.user_id = ?", userID).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return exists, nil
}
