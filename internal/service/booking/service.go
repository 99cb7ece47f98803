package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookingd/internal/domain"
	"bookingd/internal/store"
)

var (
	ErrSlotTaken          = errors.New("slot already taken")
	ErrNotLinked          = errors.New("subject is not linked to provider")
	ErrOutOfWindow        = errors.New("date outside booking window")
	ErrInvalidTransition  = errors.New("invalid reservation transition")
	ErrStorageUnavailable = errors.New("storage unavailable")
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

type Config struct {
	// HorizonDays bounds how far ahead a reservation may be placed.
	HorizonDays int
	// SlotDurationMinutes is the fixed length of every bookable slot.
	SlotDurationMinutes int
	// Location is the single canonical time zone reservations live in.
	Location *time.Location
}

const (
	DefaultHorizonDays         = 30
	DefaultSlotDurationMinutes = 60
)

type Service struct {
	reservations store.ReservationRepository
	availability store.AvailabilityRepository
	links        store.RelationshipDirectory
	cfg          Config

	now func() time.Time
}

func NewService(reservations store.ReservationRepository, availability store.AvailabilityRepository, links store.RelationshipDirectory, cfg Config) *Service {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizonDays
	}
	if cfg.SlotDurationMinutes <= 0 {
		cfg.SlotDurationMinutes = DefaultSlotDurationMinutes
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		reservations: reservations,
		availability: availability,
		links:        links,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *Service) ListBookableDates(ctx context.Context, providerID string, horizonDays int) ([]domain.BookableDate, error) {
	if providerID == "" {
		return nil, validationError("provider_id is required")
	}
	if horizonDays <= 0 || horizonDays > s.cfg.HorizonDays {
		horizonDays = s.cfg.HorizonDays
	}

	rules, err := s.availability.ListActiveRules(ctx, providerID)
	if err != nil {
		return nil, translateStorage(err)
	}

	today := s.now().In(s.cfg.Location)
	return domain.ExpandBookableDates(rules, horizonDays, today), nil
}

func (s *Service) ListAvailableSlots(ctx context.Context, providerID string, date time.Time) ([]domain.Slot, error) {
	if providerID == "" {
		return nil, validationError("provider_id is required")
	}

	slots, err := s.providerSlots(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return slots, nil
	}

	candidates := make([]domain.TimeOfDay, len(slots))
	for i, slot := range slots {
		candidates[i] = slot.Start
	}
	occupied, err := s.reservations.ScheduledStarts(ctx, providerID, domain.CivilDate(date), candidates)
	if err != nil {
		return nil, translateStorage(err)
	}

	free := slots[:0]
	for _, slot := range slots {
		if _, taken := occupied[slot.Start]; taken {
			continue
		}
		free = append(free, slot)
	}
	return free, nil
}

type ReserveInput struct {
	SubjectID    string
	ProviderID   string
	Date         time.Time
	Slot         domain.Slot
	SubjectNotes string
}

// Reserve books a slot for a subject. The precondition checks and the
// occupied-starts lookup are advisory; the insert against the store's
// filtered unique index is what makes the commit race-safe, and a
// constraint rejection there surfaces as ErrSlotTaken.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error) {
	if in.SubjectID == "" {
		return domain.Reservation{}, validationError("subject_id is required")
	}
	if in.ProviderID == "" {
		return domain.Reservation{}, validationError("provider_id is required")
	}

	// Precondition order matters: link, then window, then slot validity.
	// A malformed slot from an unlinked subject is still NotLinked.
	linked, err := s.links.LinkExists(ctx, in.SubjectID, in.ProviderID)
	if err != nil {
		return domain.Reservation{}, translateStorage(err)
	}
	if !linked {
		return domain.Reservation{}, ErrNotLinked
	}

	date := domain.CivilDate(in.Date)
	today := domain.CivilDate(s.now().In(s.cfg.Location))
	if date.Before(today) || !date.Before(today.AddDate(0, 0, s.cfg.HorizonDays)) {
		return domain.Reservation{}, ErrOutOfWindow
	}

	if !in.Slot.Start.Valid() || !in.Slot.End.Valid() || in.Slot.End <= in.Slot.Start {
		return domain.Reservation{}, validationError("slot times are invalid")
	}

	slots, err := s.providerSlots(ctx, in.ProviderID, date)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !containsSlot(slots, in.Slot) {
		return domain.Reservation{}, validationError("slot does not match provider availability")
	}

	occupied, err := s.reservations.ScheduledStarts(ctx, in.ProviderID, date, []domain.TimeOfDay{in.Slot.Start})
	if err != nil {
		return domain.Reservation{}, translateStorage(err)
	}
	if _, taken := occupied[in.Slot.Start]; taken {
		return domain.Reservation{}, ErrSlotTaken
	}

	created, err := s.reservations.Create(ctx, domain.Reservation{
		ProviderID:   in.ProviderID,
		SubjectID:    in.SubjectID,
		Date:         date,
		StartTime:    in.Slot.Start,
		EndTime:      in.Slot.End,
		Status:       domain.StatusScheduled,
		SubjectNotes: strings.TrimSpace(in.SubjectNotes),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Reservation{}, ErrSlotTaken
		}
		return domain.Reservation{}, translateStorage(err)
	}
	return created, nil
}

// Cancel moves a scheduled reservation to cancelled. Either party may
// cancel, but only before the reservation's start instant.
func (s *Service) Cancel(ctx context.Context, reservationID uuid.UUID, actorID string) (domain.Reservation, error) {
	if reservationID == uuid.Nil {
		return domain.Reservation{}, validationError("reservation_id is required")
	}
	if actorID == "" {
		return domain.Reservation{}, validationError("actor_id is required")
	}

	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return domain.Reservation{}, translateStorage(err)
	}
	if actorID != res.SubjectID && actorID != res.ProviderID {
		return domain.Reservation{}, validationError("actor is not a party to this reservation")
	}
	if !domain.CanTransition(res.Status, domain.StatusCancelled) {
		return res, ErrInvalidTransition
	}
	if !s.now().Before(res.StartInstant(s.cfg.Location)) {
		return res, ErrInvalidTransition
	}

	return s.transition(ctx, reservationID, domain.StatusCancelled)
}

// Complete marks a scheduled reservation as held. Provider-only, and only
// once the start instant has passed.
func (s *Service) Complete(ctx context.Context, reservationID uuid.UUID, providerID string) (domain.Reservation, error) {
	return s.closeOut(ctx, reservationID, providerID, domain.StatusCompleted)
}

// MarkNoShow marks a scheduled reservation as missed, under the same
// conditions as Complete.
func (s *Service) MarkNoShow(ctx context.Context, reservationID uuid.UUID, providerID string) (domain.Reservation, error) {
	return s.closeOut(ctx, reservationID, providerID, domain.StatusNoShow)
}

func (s *Service) closeOut(ctx context.Context, reservationID uuid.UUID, providerID string, to domain.ReservationStatus) (domain.Reservation, error) {
	if reservationID == uuid.Nil {
		return domain.Reservation{}, validationError("reservation_id is required")
	}
	if providerID == "" {
		return domain.Reservation{}, validationError("provider_id is required")
	}

	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return domain.Reservation{}, translateStorage(err)
	}
	if res.ProviderID != providerID {
		return domain.Reservation{}, validationError("only the reservation's provider may close it out")
	}
	if !domain.CanTransition(res.Status, to) {
		return res, ErrInvalidTransition
	}
	if s.now().Before(res.StartInstant(s.cfg.Location)) {
		return res, ErrInvalidTransition
	}

	return s.transition(ctx, reservationID, to)
}

func (s *Service) transition(ctx context.Context, reservationID uuid.UUID, to domain.ReservationStatus) (domain.Reservation, error) {
	updated, err := s.reservations.TransitionStatus(ctx, reservationID, to)
	if err != nil {
		// The status guard missed: a competing transition landed first.
		if errors.Is(err, store.ErrConflict) {
			return updated, ErrInvalidTransition
		}
		return domain.Reservation{}, translateStorage(err)
	}
	return updated, nil
}

func (s *Service) ListUpcomingForSubject(ctx context.Context, subjectID string) ([]domain.Reservation, error) {
	if subjectID == "" {
		return nil, validationError("subject_id is required")
	}
	rows, err := s.reservations.ListUpcomingForSubject(ctx, subjectID, s.now().In(s.cfg.Location))
	if err != nil {
		return nil, translateStorage(err)
	}
	return rows, nil
}

func (s *Service) ListUpcomingForProvider(ctx context.Context, providerID string) ([]domain.Reservation, error) {
	if providerID == "" {
		return nil, validationError("provider_id is required")
	}
	rows, err := s.reservations.ListUpcomingForProvider(ctx, providerID, s.now().In(s.cfg.Location))
	if err != nil {
		return nil, translateStorage(err)
	}
	return rows, nil
}

func (s *Service) providerSlots(ctx context.Context, providerID string, date time.Time) ([]domain.Slot, error) {
	rules, err := s.availability.ListActiveRules(ctx, providerID)
	if err != nil {
		return nil, translateStorage(err)
	}
	ranges := domain.DayRanges(rules, int(domain.CivilDate(date).Weekday()))
	return domain.GenerateSlots(ranges, s.cfg.SlotDurationMinutes), nil
}

func containsSlot(slots []domain.Slot, want domain.Slot) bool {
	for _, s := range slots {
		if s.Start == want.Start && s.End == want.End {
			return true
		}
	}
	return false
}

func translateStorage(err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
