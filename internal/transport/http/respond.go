package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string // empty keeps err.Error()
}

// Order matters: the first matching sentinel wins.
var errorMappings = []errorMapping{
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable", "service temporarily unavailable, please retry"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input", ""},
	{domain.ErrIncompleteSubmission, http.StatusBadRequest, "incomplete_submission", "every question must be answered exactly once"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "authentication required"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden", "admin access required"},
	{domain.ErrNoOpenCohort, http.StatusNotFound, "no_open_cohort", "no cohort is open for enrollment"},
	{domain.ErrNotEnrolled, http.StatusNotFound, "not_enrolled", "student is not enrolled"},
	{domain.ErrAnswerKeyMissing, http.StatusNotFound, "answer_key_missing", "lesson has no answer key yet"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found", "resource not found"},
	{domain.ErrAlreadySubmitted, http.StatusConflict, "already_submitted", "quiz already submitted for this lesson"},
	{domain.ErrVersionConflict, http.StatusConflict, "conflict", "concurrent update, please retry"},
	{domain.ErrDuplicate, http.StatusConflict, "duplicate", "resource already exists"},
	{domain.ErrQuizClosed, http.StatusGone, "quiz_closed", "quiz is past its due date"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			if m.status >= http.StatusInternalServerError && logger != nil {
				logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
			}
			writeJSON(w, m.status, errorBody{Error: errorDetail{Code: m.code, Message: msg}})
			return
		}
	}
	if logger != nil {
		logger.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Code: "internal", Message: "internal error"}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
