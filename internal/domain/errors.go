package domain

import "errors"

var (
	// ErrNoOpenCohort is returned when a student enrolls while no cohort is open.
	ErrNoOpenCohort = errors.New("no open cohort")
	// ErrNotEnrolled is returned when a student acts before enrolling.
	ErrNotEnrolled = errors.New("student not enrolled")
	// ErrAlreadySubmitted rejects a second submission for the same lesson.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrAnswerKeyMissing indicates the lesson has no answer key yet.
	ErrAnswerKeyMissing = errors.New("answer key missing")
	// ErrIncompleteSubmission indicates the answers do not cover every question exactly once.
	ErrIncompleteSubmission = errors.New("incomplete submission")
	// ErrStoreUnavailable wraps any failure of the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrQuizClosed indicates the lesson is past its due date.
	ErrQuizClosed = errors.New("quiz past due date")

	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
)
