package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// maxConflictRetries bounds optimistic-concurrency retries.
const maxConflictRetries = 3

// storeErr wraps a repository error. Semantic errors keep their identity; any
// other failure is reported as domain.ErrStoreUnavailable with the cause chained.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

var phonePattern = regexp.MustCompile(`^\(\d{2}\) \d{5}-\d{4}$`)

// NewValidator returns a validator with the project's custom rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	// "phone" accepts the Brazilian mobile format (xx) xxxxx-xxxx.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}
