package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"bookingd/internal/domain"
	"bookingd/internal/store"
)

// scheduledSlotIndex is the partial unique index over
// (provider_id, reservation_date, start_time) WHERE status = 'scheduled'.
// Booking correctness rests on it, not on any application-level check.
const scheduledSlotIndex = "reservations_scheduled_slot_key"

type ReservationRepo struct {
	db *bun.DB
}

func NewReservationRepo(db *bun.DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

func (r *ReservationRepo) Create(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	m := res
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == scheduledSlotIndex {
			return domain.Reservation{}, store.ErrConflict
		}
		return domain.Reservation{}, storageErr(err)
	}
	return m, nil
}

func (r *ReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	var res domain.Reservation
	err := r.db.NewSelect().
		Model(&res).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, store.ErrNotFound
		}
		return domain.Reservation{}, storageErr(err)
	}
	return res, nil
}

func (r *ReservationRepo) ScheduledStarts(ctx context.Context, providerID string, date time.Time, candidates []domain.TimeOfDay) (map[domain.TimeOfDay]struct{}, error) {
	occupied := make(map[domain.TimeOfDay]struct{}, len(candidates))
	if len(candidates) == 0 {
		return occupied, nil
	}

	var rows []domain.Reservation
	err := r.db.NewSelect().
		Model(&rows).
		Column("start_time").
		Where("provider_id = ?", providerID).
		Where("reservation_date = ?", domain.CivilDate(date)).
		Where("status = ?", domain.StatusScheduled).
		Where("start_time IN (?)", bun.In(candidates)).
		Scan(ctx)
	if err != nil {
		return nil, storageErr(err)
	}

	for _, row := range rows {
		occupied[row.StartTime] = struct{}{}
	}
	return occupied, nil
}

func (r *ReservationRepo) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.ReservationStatus) (domain.Reservation, error) {
	res, err := r.db.NewUpdate().
		Model((*domain.Reservation)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", domain.StatusScheduled).
		Exec(ctx)
	if err != nil {
		return domain.Reservation{}, storageErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Reservation{}, storageErr(err)
	}
	if affected == 0 {
		existing, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return domain.Reservation{}, getErr
		}
		// Row exists but is no longer scheduled: a competing transition won.
		return existing, store.ErrConflict
	}
	return r.GetByID(ctx, id)
}

func (r *ReservationRepo) ListUpcomingForSubject(ctx context.Context, subjectID string, from time.Time) ([]domain.Reservation, error) {
	return r.listUpcoming(ctx, "subject_id", subjectID, from)
}

func (r *ReservationRepo) ListUpcomingForProvider(ctx context.Context, providerID string, from time.Time) ([]domain.Reservation, error) {
	return r.listUpcoming(ctx, "provider_id", providerID, from)
}

func (r *ReservationRepo) listUpcoming(ctx context.Context, column, id string, from time.Time) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := r.db.NewSelect().
		Model(&rows).
		Where("? = ?", bun.Ident(column), id).
		Where("status = ?", domain.StatusScheduled).
		Where("reservation_date >= ?", domain.CivilDate(from)).
		OrderExpr("reservation_date ASC, start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return rows, nil
}

// storageErr classifies infrastructure failures (timeouts, lost
// connections) as store.ErrUnavailable so callers can tell a retryable
// outage apart from a domain conflict.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}
