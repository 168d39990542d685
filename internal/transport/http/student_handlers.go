package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

type lessonView struct {
	domain.Lesson
	Submitted bool `json:"submitted"`
	Closed    bool `json:"closed"`
}

type lessonDetail struct {
	lessonView
	Result *domain.AnnotatedSubmission `json:"result,omitempty"`
}

type submitRequest struct {
	Answers []domain.AnswerSubmission `json:"answers"`
}

type submitResponse struct {
	Submission domain.Submission   `json:"submission"`
	Summary    domain.GradeSummary `json:"summary"`
}

type submissionsResponse struct {
	PassThreshold float64                      `json:"passThreshold"`
	Results       []domain.AnnotatedSubmission `json:"results"`
}

func (h *handler) enroll(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.Enrollments.EnsureEnrolled(r.Context(), identityOf(r))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var profile domain.Profile
	if err := decodeJSON(w, r, &profile); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	enrollment, err := h.Enrollments.UpdateProfile(r.Context(), identityOf(r).UserID, profile)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (h *handler) myLessons(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.Enrollments.Enrollment(r.Context(), identityOf(r).UserID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	lessons, err := h.Lessons.ListLessons(r.Context(), enrollment.CohortID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	now := h.Now()
	views := make([]lessonView, 0, len(lessons))
	for _, l := range lessons {
		_, submitted := enrollment.Submission(l.ID)
		views = append(views, lessonView{Lesson: l, Submitted: submitted, Closed: l.Closed(now)})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) myLesson(w http.ResponseWriter, r *http.Request) {
	enrollment, lesson, err := h.ownLesson(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	detail := lessonDetail{lessonView: lessonView{Lesson: lesson, Closed: lesson.Closed(h.Now())}}
	if sub, ok := enrollment.Submission(lesson.ID); ok {
		detail.Submitted = true
		detail.Result = &domain.AnnotatedSubmission{Submission: sub, Summary: h.Enrollments.GradeSummary(sub)}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	enrollment, lesson, err := h.ownLesson(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	// a past-due lesson refuses new submissions; an existing one still reports 409
	if _, submitted := enrollment.Submission(lesson.ID); !submitted && lesson.Closed(h.Now()) {
		writeError(w, r, h.Logger, domain.ErrQuizClosed)
		return
	}

	submission, err := h.Enrollments.Submit(r.Context(), enrollment.StudentID, lesson.ID, req.Answers)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		Submission: submission,
		Summary:    h.Enrollments.GradeSummary(submission),
	})
}

func (h *handler) mySubmissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, submissionsResponse{
		PassThreshold: h.Enrollments.PassThreshold(),
		Results:       h.Enrollments.ListSubmissions(r.Context(), identityOf(r).UserID),
	})
}

// ownLesson loads the caller's enrollment and a lesson of their cohort.
// Lessons of other cohorts are reported as not found.
func (h *handler) ownLesson(r *http.Request) (domain.Enrollment, domain.Lesson, error) {
	enrollment, err := h.Enrollments.Enrollment(r.Context(), identityOf(r).UserID)
	if err != nil {
		return domain.Enrollment{}, domain.Lesson{}, err
	}
	lesson, err := h.Lessons.GetLesson(r.Context(), chi.URLParam(r, "lessonID"))
	if err != nil {
		return domain.Enrollment{}, domain.Lesson{}, err
	}
	if lesson.CohortID != enrollment.CohortID {
		return domain.Enrollment{}, domain.Lesson{}, domain.ErrNotFound
	}
	return enrollment, lesson, nil
}
