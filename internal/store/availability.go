package store

import (
	"context"

	"github.com/google/uuid"

	"bookingd/internal/domain"
)

type AvailabilityRepository interface {
	CreateRule(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error)
	ListRules(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error)
	ListActiveRules(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error)
	DeactivateRule(ctx context.Context, providerID string, ruleID uuid.UUID) (domain.AvailabilityRule, error)
}

// RelationshipDirectory is the read-only view of subject/provider links
// maintained elsewhere.
type RelationshipDirectory interface {
	LinkExists(ctx context.Context, subjectID, providerID string) (bool, error)
}
