package domain

import (
	"strings"
	"time"
)

// Cohort is a named, time-boxed group of students ("turma").
type Cohort struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsOpen    bool      `json:"isOpen"`
	OpensAt   time.Time `json:"opensAt"`
	ClosesAt  time.Time `json:"closesAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Question models a multiple-choice question. Choices are addressed by letter, see ChoiceLetter.
type Question struct {
	Prompt  string   `json:"prompt" validate:"required"`
	Choices []string `json:"choices" validate:"min=1,dive,required"`
}

// Lesson is a numbered unit with video, material and a quiz ("aula").
type Lesson struct {
	ID          string     `json:"id"`
	CohortID    string     `json:"cohortId"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	OpenAt      time.Time  `json:"openAt"`
	DueAt       time.Time  `json:"dueAt"`
	VideoURL    string     `json:"videoUrl"`
	MaterialURL string     `json:"materialUrl"`
	Questions   []Question `json:"questions"`
}

// Closed reports whether the quiz is past its due date. A zero DueAt never closes.
func (l Lesson) Closed(now time.Time) bool {
	return !l.DueAt.IsZero() && l.DueAt.Before(now)
}

// AnswerKey holds the correct letter per 1-based question number for one lesson.
type AnswerKey struct {
	ID             string         `json:"id"`
	LessonID       string         `json:"lessonId"`
	CorrectChoices map[int]string `json:"correctChoices"`
}

// ChoiceLetter maps a zero-based choice index to its letter: 0 -> "a", 1 -> "b".
func ChoiceLetter(index int) string {
	return string(rune('a' + index))
}

// SameChoice compares two letters case-insensitively.
func SameChoice(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Address is the postal address collected for certificates.
type Address struct {
	StreetType string `json:"streetType" validate:"required"`
	StreetName string `json:"streetName" validate:"required"`
	Number     string `json:"number" validate:"required"`
	Complement string `json:"complement"`
	District   string `json:"district" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
}

// Profile is the contact data a student fills in after enrolling.
type Profile struct {
	Phone   string  `json:"phone" validate:"required,phone"`
	Address Address `json:"address"`
}

// Enrollment links a student to the cohort they joined and holds their submissions ("cadastro").
type Enrollment struct {
	ID          string       `json:"id"`
	StudentID   string       `json:"studentId"`
	Email       string       `json:"email"`
	DisplayName string       `json:"displayName"`
	CohortID    string       `json:"cohortId"`
	Profile     *Profile     `json:"profile,omitempty"`
	Submissions []Submission `json:"submissions"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Submission returns the submission for lessonID, if any.
func (e Enrollment) Submission(lessonID string) (Submission, bool) {
	for _, s := range e.Submissions {
		if s.LessonID == lessonID {
			return s, true
		}
	}
	return Submission{}, false
}

// AnswerSubmission is one answer as sent by the student.
type AnswerSubmission struct {
	QuestionNumber int    `json:"questionNumber"`
	ChosenChoice   string `json:"chosenChoice"`
}

// GradedAnswer is an answer after grading.
type GradedAnswer struct {
	QuestionNumber int    `json:"questionNumber"`
	ChosenChoice   string `json:"chosenChoice"`
	IsCorrect      bool   `json:"isCorrect"`
}

// Submission is one graded attempt at one lesson's quiz ("envio").
type Submission struct {
	LessonID    string         `json:"lessonId"`
	SubmittedAt time.Time      `json:"submittedAt"`
	Answers     []GradedAnswer `json:"answers"`
}

// GradeSummary is derived from a submission, never stored.
type GradeSummary struct {
	CorrectCount int     `json:"correctCount"`
	TotalCount   int     `json:"totalCount"`
	Percentage   float64 `json:"percentage"`
	Passed       bool    `json:"passed"`
}

// AnnotatedSubmission joins a submission with its lesson for display.
type AnnotatedSubmission struct {
	Submission
	Lesson  *Lesson      `json:"lesson,omitempty"`
	Summary GradeSummary `json:"summary"`
}

// Identity is the authenticated caller.
type Identity struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Admin       bool   `json:"admin"`
}

// Event is published to admin subscribers after a mutation.
type Event struct {
	Type       string    `json:"type"`
	CohortID   string    `json:"cohortId,omitempty"`
	LessonID   string    `json:"lessonId,omitempty"`
	StudentID  string    `json:"studentId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

const (
	EventCohortOpened       = "cohort.opened"
	EventCohortClosed       = "cohort.closed"
	EventSubmissionRecorded = "submission.recorded"
	EventSubmissionRemoved  = "submission.removed"
	EventStudentEnrolled    = "student.enrolled"
)
