package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookingd/internal/domain"
)

type ReservationRepository interface {
	// Create persists a reservation. A scheduled reservation colliding with
	// an existing scheduled (provider, date, start_time) triple fails with
	// ErrConflict; the unique index behind that is the race-safety
	// mechanism for booking.
	Create(ctx context.Context, res domain.Reservation) (domain.Reservation, error)

	GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error)

	// ScheduledStarts reports which of the candidate start times already
	// carry a scheduled reservation for the provider on the given date.
	// The snapshot is advisory only.
	ScheduledStarts(ctx context.Context, providerID string, date time.Time, candidates []domain.TimeOfDay) (map[domain.TimeOfDay]struct{}, error)

	// TransitionStatus moves a reservation out of the scheduled state. The
	// guard on the current status is applied in the store, so concurrent
	// transitions cannot both fire; a guard miss returns ErrNotFound when
	// the row does not exist and ErrConflict when it does but is no longer
	// scheduled.
	TransitionStatus(ctx context.Context, id uuid.UUID, to domain.ReservationStatus) (domain.Reservation, error)

	ListUpcomingForSubject(ctx context.Context, subjectID string, from time.Time) ([]domain.Reservation, error)
	ListUpcomingForProvider(ctx context.Context, providerID string, from time.Time) ([]domain.Reservation, error)
}
