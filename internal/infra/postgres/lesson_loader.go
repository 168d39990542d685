package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// LessonLoader loads a cohort's lessons (questions JSONB included) over pgxpool.
// It backs the lesson catalog's read path.
type LessonLoader struct {
	pool *pgxpool.Pool
}

func NewLessonLoader(pool *pgxpool.Pool) *LessonLoader {
	return &LessonLoader{pool: pool}
}

func (l *LessonLoader) LoadLessons(ctx context.Context, cohortID string) ([]domain.Lesson, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, cohort_id, number, title, open_at, due_at, video_url, material_url, questions
		FROM lessons
		WHERE cohort_id = $1
		ORDER BY number, id`, cohortID)
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	defer rows.Close()

	lessons := make([]domain.Lesson, 0)
	for rows.Next() {
		var (
			lesson        domain.Lesson
			openAt, dueAt *time.Time
			raw           []byte
		)
		if err := rows.Scan(&lesson.ID, &lesson.CohortID, &lesson.Number, &lesson.Title,
			&openAt, &dueAt, &lesson.VideoURL, &lesson.MaterialURL, &raw); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		if openAt != nil {
			lesson.OpenAt = *openAt
		}
		if dueAt != nil {
			lesson.DueAt = *dueAt
		}
		if err := json.Unmarshal(raw, &lesson.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
		if lesson.Questions == nil {
			lesson.Questions = []domain.Question{}
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	return lessons, nil
}
