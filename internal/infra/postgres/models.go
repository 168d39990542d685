package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

type cohortRow struct {
	bun.BaseModel `bun:"table:cohorts,alias:c"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	IsOpen    bool      `bun:"is_open,notnull"`
	OpensAt   time.Time `bun:"opens_at,nullzero"`
	ClosesAt  time.Time `bun:"closes_at,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (r cohortRow) toDomain() domain.Cohort {
	return domain.Cohort{
		ID:        r.ID,
		Name:      r.Name,
		IsOpen:    r.IsOpen,
		OpensAt:   r.OpensAt,
		ClosesAt:  r.ClosesAt,
		CreatedAt: r.CreatedAt,
	}
}

type lessonRow struct {
	bun.BaseModel `bun:"table:lessons,alias:l"`

	ID          string            `bun:"id,pk"`
	CohortID    string            `bun:"cohort_id,notnull"`
	Number      int               `bun:"number,notnull"`
	Title       string            `bun:"title,notnull"`
	OpenAt      time.Time         `bun:"open_at,nullzero"`
	DueAt       time.Time         `bun:"due_at,nullzero"`
	VideoURL    string            `bun:"video_url,notnull"`
	MaterialURL string            `bun:"material_url,notnull"`
	Questions   []domain.Question `bun:"questions,type:jsonb,notnull"`
}

func (r lessonRow) toDomain() domain.Lesson {
	questions := r.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	return domain.Lesson{
		ID:          r.ID,
		CohortID:    r.CohortID,
		Number:      r.Number,
		Title:       r.Title,
		OpenAt:      r.OpenAt,
		DueAt:       r.DueAt,
		VideoURL:    r.VideoURL,
		MaterialURL: r.MaterialURL,
		Questions:   questions,
	}
}

type answerKeyRow struct {
	bun.BaseModel `bun:"table:answer_keys,alias:ak"`

	ID             string         `bun:"id,pk"`
	LessonID       string         `bun:"lesson_id,notnull"`
	CorrectChoices map[int]string `bun:"correct_choices,type:jsonb,notnull"`
}

type enrollmentRow struct {
	bun.BaseModel `bun:"table:enrollments,alias:e"`

	ID          string              `bun:"id,pk"`
	StudentID   string              `bun:"student_id,notnull"`
	Email       string              `bun:"email,notnull"`
	DisplayName string              `bun:"display_name,notnull"`
	CohortID    string              `bun:"cohort_id,notnull"`
	Profile     *domain.Profile     `bun:"profile,type:jsonb"`
	Submissions []domain.Submission `bun:"submissions,type:jsonb,notnull"`
	Version     int                 `bun:"version,notnull"`
	CreatedAt   time.Time           `bun:"created_at,notnull"`
}

func (r enrollmentRow) toDomain() domain.Enrollment {
	submissions := r.Submissions
	if submissions == nil {
		submissions = []domain.Submission{}
	}
	return domain.Enrollment{
		ID:          r.ID,
		StudentID:   r.StudentID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		CohortID:    r.CohortID,
		Profile:     r.Profile,
		Submissions: submissions,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
	}
}

type adminRow struct {
	bun.BaseModel `bun:"table:admins,alias:a"`

	UserID    string    `bun:"user_id,pk"`
	GrantedAt time.Time `bun:"granted_at,notnull"`
}
