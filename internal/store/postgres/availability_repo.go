package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"bookingd/internal/domain"
	"bookingd/internal/store"
)

type AvailabilityRepo struct {
	db *bun.DB
}

func NewAvailabilityRepo(db *bun.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

func (r *AvailabilityRepo) CreateRule(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error) {
	m := rule
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.AvailabilityRule{}, storageErr(err)
	}
	return m, nil
}

func (r *AvailabilityRepo) ListRules(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error) {
	return r.listRules(ctx, providerID, false)
}

func (r *AvailabilityRepo) ListActiveRules(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error) {
	return r.listRules(ctx, providerID, true)
}

func (r *AvailabilityRepo) listRules(ctx context.Context, providerID string, activeOnly bool) ([]domain.AvailabilityRule, error) {
	var rows []domain.AvailabilityRule
	q := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID)
	if activeOnly {
		q = q.Where("is_active")
	}
	err := q.OrderExpr("day_of_week ASC, start_time ASC").Scan(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return rows, nil
}

func (r *AvailabilityRepo) DeactivateRule(ctx context.Context, providerID string, ruleID uuid.UUID) (domain.AvailabilityRule, error) {
	res, err := r.db.NewUpdate().
		Model((*domain.AvailabilityRule)(nil)).
		Set("is_active = FALSE").
		Set("updated_at = now()").
		Where("id = ?", ruleID).
		Where("provider_id = ?", providerID).
		Exec(ctx)
	if err != nil {
		return domain.AvailabilityRule{}, storageErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.AvailabilityRule{}, storageErr(err)
	}
	if affected == 0 {
		return domain.AvailabilityRule{}, store.ErrNotFound
	}

	var rule domain.AvailabilityRule
	err = r.db.NewSelect().
		Model(&rule).
		Where("id = ?", ruleID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AvailabilityRule{}, store.ErrNotFound
		}
		return domain.AvailabilityRule{}, storageErr(err)
	}
	return rule, nil
}

type RelationshipRepo struct {
	db *bun.DB
}

func NewRelationshipRepo(db *bun.DB) *RelationshipRepo {
	return &RelationshipRepo{db: db}
}

func (r *RelationshipRepo) LinkExists(ctx context.Context, subjectID, providerID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*domain.RelationshipLink)(nil)).
		Where("subject_id = ?", subjectID).
		Where("provider_id = ?", providerID).
		Exists(ctx)
	if err != nil {
		return false, storageErr(err)
	}
	return exists, nil
}
