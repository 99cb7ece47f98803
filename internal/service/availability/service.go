package availability

import (
	"context"

	"github.com/google/uuid"

	"bookingd/internal/domain"
	"bookingd/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Service manages a provider's weekly availability rules. Rules feed the
// booking engine's slot expansion; retiring one is a deactivation, never a
// delete, so past reservations keep their provenance.
type Service struct {
	rules store.AvailabilityRepository
}

func NewService(rules store.AvailabilityRepository) *Service {
	return &Service{rules: rules}
}

type CreateRuleInput struct {
	ProviderID string
	DayOfWeek  int
	StartTime  domain.TimeOfDay
	EndTime    domain.TimeOfDay
}

func (s *Service) CreateRule(ctx context.Context, in CreateRuleInput) (domain.AvailabilityRule, error) {
	if in.ProviderID == "" {
		return domain.AvailabilityRule{}, validationError("provider_id is required")
	}
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return domain.AvailabilityRule{}, validationError("day_of_week must be between 0 and 6")
	}
	if !in.StartTime.Valid() || !in.EndTime.Valid() {
		return domain.AvailabilityRule{}, validationError("times must be within the day")
	}
	if in.EndTime <= in.StartTime {
		return domain.AvailabilityRule{}, validationError("end_time must be after start_time")
	}

	return s.rules.CreateRule(ctx, domain.AvailabilityRule{
		ProviderID: in.ProviderID,
		DayOfWeek:  in.DayOfWeek,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		IsActive:   true,
	})
}

func (s *Service) ListRules(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error) {
	if providerID == "" {
		return nil, validationError("provider_id is required")
	}
	return s.rules.ListRules(ctx, providerID)
}

func (s *Service) DeactivateRule(ctx context.Context, providerID string, ruleID uuid.UUID) (domain.AvailabilityRule, error) {
	if providerID == "" {
		return domain.AvailabilityRule{}, validationError("provider_id is required")
	}
	if ruleID == uuid.Nil {
		return domain.AvailabilityRule{}, validationError("rule_id is required")
	}
	return s.rules.DeactivateRule(ctx, providerID, ruleID)
}
