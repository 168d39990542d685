package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/app"
	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

type openRequest struct {
	Open bool `json:"open"`
}

type questionsRequest struct {
	Questions []domain.Question `json:"questions"`
}

type answerKeyRequest struct {
	CorrectChoices map[int]string `json:"correctChoices"`
}

func (h *handler) listCohorts(w http.ResponseWriter, r *http.Request) {
	cohorts, err := h.Cohorts.ListCohorts(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cohorts)
}

func (h *handler) createCohort(w http.ResponseWriter, r *http.Request) {
	var in app.CreateCohortInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	cohort, err := h.Cohorts.CreateCohort(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, cohort)
}

func (h *handler) setCohortOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	cohort, err := h.Cohorts.SetCohortOpen(r.Context(), chi.URLParam(r, "cohortID"), req.Open)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cohort)
}

func (h *handler) listLessons(w http.ResponseWriter, r *http.Request) {
	cohortID := chi.URLParam(r, "cohortID")
	if _, err := h.Cohorts.GetCohort(r.Context(), cohortID); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	lessons, err := h.Lessons.ListLessons(r.Context(), cohortID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *handler) createLesson(w http.ResponseWriter, r *http.Request) {
	var in app.CreateLessonInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	in.CohortID = chi.URLParam(r, "cohortID")
	lesson, err := h.Lessons.CreateLesson(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

func (h *handler) listEnrollments(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Enrollments.ListEnrollments(r.Context(), chi.URLParam(r, "cohortID"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *handler) replaceQuestions(w http.ResponseWriter, r *http.Request) {
	var req questionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	lesson, err := h.Lessons.ReplaceQuestions(r.Context(), chi.URLParam(r, "lessonID"), req.Questions)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *handler) getAnswerKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.Lessons.GetAnswerKey(r.Context(), chi.URLParam(r, "lessonID"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (h *handler) upsertAnswerKey(w http.ResponseWriter, r *http.Request) {
	var req answerKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	key, err := h.Lessons.UpsertAnswerKey(r.Context(), chi.URLParam(r, "lessonID"), req.CorrectChoices)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (h *handler) getEnrollment(w http.ResponseWriter, r *http.Request) {
	report, err := h.Enrollments.GetEnrollment(r.Context(), chi.URLParam(r, "enrollmentID"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) removeSubmission(w http.ResponseWriter, r *http.Request) {
	err := h.Enrollments.RemoveSubmission(r.Context(), chi.URLParam(r, "enrollmentID"), chi.URLParam(r, "lessonID"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
