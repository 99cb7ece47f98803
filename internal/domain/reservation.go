package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ReservationStatus string

const (
	StatusScheduled ReservationStatus = "scheduled"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusNoShow    ReservationStatus = "no_show"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s ReservationStatus) Terminal() bool {
	return s != StatusScheduled
}

// CanTransition encodes the lifecycle: scheduled is the only non-terminal
// state and may move to cancelled, completed, or no_show.
func CanTransition(from, to ReservationStatus) bool {
	if from != StatusScheduled {
		return false
	}
	switch to {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID           uuid.UUID         `bun:"id,pk,type:uuid"`
	ProviderID   string            `bun:"provider_id,notnull"`
	SubjectID    string            `bun:"subject_id,notnull"`
	Date         time.Time         `bun:"reservation_date,notnull,type:date"`
	StartTime    TimeOfDay         `bun:"start_time,notnull"`
	EndTime      TimeOfDay         `bun:"end_time,notnull"`
	Status       ReservationStatus `bun:"status,notnull"`
	Notes        string            `bun:"notes"`
	SubjectNotes string            `bun:"subject_notes"`
	CreatedAt    time.Time         `bun:"created_at,notnull"`
	UpdatedAt    time.Time         `bun:"updated_at,notnull"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// StartInstant is the absolute moment the reservation begins in the
// service's canonical location.
func (r *Reservation) StartInstant(loc *time.Location) time.Time {
	return r.StartTime.At(r.Date, loc)
}
