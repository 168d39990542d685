package app

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

const openCohortLockKey = "cohorts:open"

// CreateCohortInput describes a new cohort. Date ordering is not validated.
type CreateCohortInput struct {
	Name     string    `json:"name" validate:"required"`
	OpensAt  time.Time `json:"opensAt"`
	ClosesAt time.Time `json:"closesAt"`
}

// CohortService maintains cohorts. At most one cohort is open at a time.
type CohortService struct {
	cohorts  CohortRepository
	locker   Locker
	events   EventPublisher
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCohortService constructs CohortService. locker guards the two-step open
// when the repository is not an ExclusiveOpener.
func NewCohortService(cohorts CohortRepository, locker Locker, events EventPublisher, logger *zap.Logger) *CohortService {
	if locker == nil {
		locker = &processLocker{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CohortService{cohorts: cohorts, locker: locker, events: events, validate: NewValidator(), logger: logger}
}

// CreateCohort inserts a closed cohort.
func (s *CohortService) CreateCohort(ctx context.Context, in CreateCohortInput) (domain.Cohort, error) {
	if err := s.validate.Struct(in); err != nil {
		return domain.Cohort{}, invalid(err)
	}
	cohort := domain.Cohort{
		Name:     in.Name,
		IsOpen:   false,
		OpensAt:  in.OpensAt,
		ClosesAt: in.ClosesAt,
	}
	if err := s.cohorts.CreateCohort(ctx, &cohort); err != nil {
		return domain.Cohort{}, storeErr("create cohort", err)
	}
	s.logger.Info("cohort created", zap.String("cohort_id", cohort.ID), zap.String("name", cohort.Name))
	return cohort, nil
}

// ListCohorts returns every cohort.
func (s *CohortService) ListCohorts(ctx context.Context) ([]domain.Cohort, error) {
	cohorts, err := s.cohorts.ListCohorts(ctx)
	if err != nil {
		return nil, storeErr("list cohorts", err)
	}
	return cohorts, nil
}

// GetCohort loads one cohort.
func (s *CohortService) GetCohort(ctx context.Context, id string) (domain.Cohort, error) {
	cohort, err := s.cohorts.GetCohort(ctx, id)
	if err != nil {
		return domain.Cohort{}, storeErr("load cohort", err)
	}
	return cohort, nil
}

// FindOpenCohort returns the open cohort or domain.ErrNoOpenCohort.
func (s *CohortService) FindOpenCohort(ctx context.Context) (domain.Cohort, error) {
	cohort, err := s.cohorts.FindOpenCohort(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Cohort{}, domain.ErrNoOpenCohort
	}
	if err != nil {
		return domain.Cohort{}, storeErr("find open cohort", err)
	}
	return cohort, nil
}

// SetCohortOpen opens or closes a cohort. Opening closes every other cohort first.
func (s *CohortService) SetCohortOpen(ctx context.Context, id string, open bool) (domain.Cohort, error) {
	if _, err := s.cohorts.GetCohort(ctx, id); err != nil {
		return domain.Cohort{}, storeErr("load cohort", err)
	}

	if open {
		if err := s.openExclusive(ctx, id); err != nil {
			return domain.Cohort{}, storeErr("open cohort", err)
		}
		s.events.Publish(domain.Event{Type: domain.EventCohortOpened, CohortID: id})
	} else {
		if err := s.cohorts.SetCohortOpen(ctx, id, false); err != nil {
			return domain.Cohort{}, storeErr("close cohort", err)
		}
		s.events.Publish(domain.Event{Type: domain.EventCohortClosed, CohortID: id})
	}
	s.logger.Info("cohort status changed", zap.String("cohort_id", id), zap.Bool("open", open))

	return s.GetCohort(ctx, id)
}

func (s *CohortService) openExclusive(ctx context.Context, id string) error {
	if opener, ok := s.cohorts.(ExclusiveOpener); ok {
		var err error
		for attempt := 0; attempt < maxConflictRetries; attempt++ {
			err = opener.OpenCohortExclusive(ctx, id)
			if !errors.Is(err, domain.ErrVersionConflict) {
				return err
			}
			s.logger.Warn("concurrent cohort open, retrying", zap.String("cohort_id", id), zap.Int("attempt", attempt+1))
		}
		return err
	}

	// Two-step close-all then open-one; the lock keeps other openers out in between.
	unlock, err := s.locker.Lock(ctx, openCohortLockKey)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.cohorts.CloseAllCohorts(ctx); err != nil {
		return err
	}
	return s.cohorts.SetCohortOpen(ctx, id, true)
}
