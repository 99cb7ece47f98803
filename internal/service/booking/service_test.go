package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookingd/internal/domain"
	"bookingd/internal/store"
)

type fakeReservations struct {
	createFn          func(ctx context.Context, res domain.Reservation) (domain.Reservation, error)
	getFn             func(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	scheduledStartsFn func(ctx context.Context, providerID string, date time.Time, candidates []domain.TimeOfDay) (map[domain.TimeOfDay]struct{}, error)
	transitionFn      func(ctx context.Context, id uuid.UUID, to domain.ReservationStatus) (domain.Reservation, error)
	listSubjectFn     func(ctx context.Context, subjectID string, from time.Time) ([]domain.Reservation, error)
	listProviderFn    func(ctx context.Context, providerID string, from time.Time) ([]domain.Reservation, error)
}

func (f *fakeReservations) Create(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, res)
}

func (f *fakeReservations) GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	if f.getFn == nil {
		panic("GetByID not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeReservations) ScheduledStarts(ctx context.Context, providerID string, date time.Time, candidates []domain.TimeOfDay) (map[domain.TimeOfDay]struct{}, error) {
	if f.scheduledStartsFn == nil {
		return map[domain.TimeOfDay]struct{}{}, nil
	}
	return f.scheduledStartsFn(ctx, providerID, date, candidates)
}

func (f *fakeReservations) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.ReservationStatus) (domain.Reservation, error) {
	if f.transitionFn == nil {
		panic("TransitionStatus not configured")
	}
	return f.transitionFn(ctx, id, to)
}

func (f *fakeReservations) ListUpcomingForSubject(ctx context.Context, subjectID string, from time.Time) ([]domain.Reservation, error) {
	if f.listSubjectFn == nil {
		panic("ListUpcomingForSubject not configured")
	}
	return f.listSubjectFn(ctx, subjectID, from)
}

func (f *fakeReservations) ListUpcomingForProvider(ctx context.Context, providerID string, from time.Time) ([]domain.Reservation, error) {
	if f.listProviderFn == nil {
		panic("ListUpcomingForProvider not configured")
	}
	return f.listProviderFn(ctx, providerID, from)
}

type fakeAvailability struct {
	listActiveFn func(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error)
}

func (f *fakeAvailability) CreateRule(ctx context.Context, rule domain.AvailabilityRule) (domain.AvailabilityRule, error) {
	panic("not used")
}

func (f *fakeAvailability) ListRules(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error) {
	panic("not used")
}

func (f *fakeAvailability) ListActiveRules(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error) {
	if f.listActiveFn == nil {
		return nil, nil
	}
	return f.listActiveFn(ctx, providerID)
}

func (f *fakeAvailability) DeactivateRule(ctx context.Context, providerID string, ruleID uuid.UUID) (domain.AvailabilityRule, error) {
	panic("not used")
}

type fakeLinks struct {
	existsFn func(ctx context.Context, subjectID, providerID string) (bool, error)
}

func (f *fakeLinks) LinkExists(ctx context.Context, subjectID, providerID string) (bool, error) {
	if f.existsFn == nil {
		return true, nil
	}
	return f.existsFn(ctx, subjectID, providerID)
}

// memReservations mimics the store's uniqueness guarantee: at most one
// scheduled reservation per (provider, date, start) under a lock.
type memReservations struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.Reservation
}

func newMemReservations() *memReservations {
	return &memReservations{rows: make(map[uuid.UUID]domain.Reservation)}
}

func (m *memReservations) Create(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Status == domain.StatusScheduled &&
			existing.ProviderID == res.ProviderID &&
			existing.Date.Equal(res.Date) &&
			existing.StartTime == res.StartTime {
			return domain.Reservation{}, store.ErrConflict
		}
	}
	res.ID = uuid.New()
	m.rows[res.ID] = res
	return res, nil
}

func (m *memReservations) GetByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok {
		return domain.Reservation{}, store.ErrNotFound
	}
	return res, nil
}

func (m *memReservations) ScheduledStarts(ctx context.Context, providerID string, date time.Time, candidates []domain.TimeOfDay) (map[domain.TimeOfDay]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	occupied := make(map[domain.TimeOfDay]struct{})
	if len(candidates) == 0 {
		return occupied, nil
	}
	wanted := make(map[domain.TimeOfDay]struct{}, len(candidates))
	for _, c := range candidates {
		wanted[c] = struct{}{}
	}
	for _, res := range m.rows {
		if res.Status != domain.StatusScheduled || res.ProviderID != providerID || !res.Date.Equal(date) {
			continue
		}
		if _, ok := wanted[res.StartTime]; ok {
			occupied[res.StartTime] = struct{}{}
		}
	}
	return occupied, nil
}

func (m *memReservations) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.ReservationStatus) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok {
		return domain.Reservation{}, store.ErrNotFound
	}
	if res.Status != domain.StatusScheduled {
		return res, store.ErrConflict
	}
	res.Status = to
	m.rows[id] = res
	return res, nil
}

func (m *memReservations) ListUpcomingForSubject(ctx context.Context, subjectID string, from time.Time) ([]domain.Reservation, error) {
	return nil, nil
}

func (m *memReservations) ListUpcomingForProvider(ctx context.Context, providerID string, from time.Time) ([]domain.Reservation, error) {
	return nil, nil
}

func (m *memReservations) scheduledCount(providerID string, date time.Time, start domain.TimeOfDay) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, res := range m.rows {
		if res.Status == domain.StatusScheduled &&
			res.ProviderID == providerID &&
			res.Date.Equal(date) &&
			res.StartTime == start {
			n++
		}
	}
	return n
}

// fixedNow is a Monday morning; mondayRule covers it 09:00-11:00.
var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func mustTime(t *testing.T, s string) domain.TimeOfDay {
	t.Helper()
	v, err := domain.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q) error: %v", s, err)
	}
	return v
}

func mondayRule(t *testing.T) domain.AvailabilityRule {
	t.Helper()
	return domain.AvailabilityRule{
		ProviderID: "p1",
		DayOfWeek:  1,
		StartTime:  mustTime(t, "09:00"),
		EndTime:    mustTime(t, "11:00"),
		IsActive:   true,
	}
}

func newTestService(t *testing.T, reservations store.ReservationRepository, rules []domain.AvailabilityRule, linked bool) *Service {
	t.Helper()
	svc := NewService(
		reservations,
		&fakeAvailability{listActiveFn: func(ctx context.Context, providerID string) ([]domain.AvailabilityRule, error) {
			return rules, nil
		}},
		&fakeLinks{existsFn: func(ctx context.Context, subjectID, providerID string) (bool, error) {
			return linked, nil
		}},
		Config{HorizonDays: 30, SlotDurationMinutes: 60, Location: time.UTC},
	)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func validReserveInput(t *testing.T) ReserveInput {
	t.Helper()
	return ReserveInput{
		SubjectID:  "s1",
		ProviderID: "p1",
		Date:       fixedNow,
		Slot:       domain.Slot{Start: mustTime(t, "09:00"), End: mustTime(t, "10:00")},
	}
}

func TestReserve_NotLinked(t *testing.T) {
	// createFn left nil: any write attempt panics the test.
	svc := newTestService(t, &fakeReservations{}, []domain.AvailabilityRule{mondayRule(t)}, false)

	_, err := svc.Reserve(context.Background(), validReserveInput(t))
	if !errors.Is(err, ErrNotLinked) {
		t.Fatalf("err = %v, want ErrNotLinked", err)
	}

	// The link gate fires even when the slot itself is malformed.
	backwards := validReserveInput(t)
	backwards.Slot = domain.Slot{Start: mustTime(t, "10:00"), End: mustTime(t, "09:00")}
	if _, err := svc.Reserve(context.Background(), backwards); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("malformed slot err = %v, want ErrNotLinked", err)
	}
}

func TestReserve_MalformedSlotAfterLinkAndWindow(t *testing.T) {
	svc := newTestService(t, &fakeReservations{}, []domain.AvailabilityRule{mondayRule(t)}, true)

	backwards := validReserveInput(t)
	backwards.Slot = domain.Slot{Start: mustTime(t, "10:00"), End: mustTime(t, "09:00")}

	_, err := svc.Reserve(context.Background(), backwards)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("linked err = %T %v, want *ValidationError", err, err)
	}

	// Outside the window the date verdict wins over the slot shape.
	past := backwards
	past.Date = fixedNow.AddDate(0, 0, -1)
	if _, err := svc.Reserve(context.Background(), past); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("past date err = %v, want ErrOutOfWindow", err)
	}
}

func TestReserve_OutOfWindow(t *testing.T) {
	svc := newTestService(t, &fakeReservations{}, []domain.AvailabilityRule{mondayRule(t)}, true)

	past := validReserveInput(t)
	past.Date = fixedNow.AddDate(0, 0, -1)
	if _, err := svc.Reserve(context.Background(), past); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("past date err = %v, want ErrOutOfWindow", err)
	}

	far := validReserveInput(t)
	far.Date = fixedNow.AddDate(0, 0, 30)
	if _, err := svc.Reserve(context.Background(), far); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("beyond-horizon err = %v, want ErrOutOfWindow", err)
	}
}

func TestReserve_SlotOutsideAvailability(t *testing.T) {
	svc := newTestService(t, &fakeReservations{}, []domain.AvailabilityRule{mondayRule(t)}, true)

	in := validReserveInput(t)
	in.Slot = domain.Slot{Start: mustTime(t, "12:00"), End: mustTime(t, "13:00")}

	_, err := svc.Reserve(context.Background(), in)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %T %v, want *ValidationError", err, err)
	}
}

func TestReserve_StaleSlotShape(t *testing.T) {
	// Right start, wrong end: the slot no longer matches current rules.
	svc := newTestService(t, &fakeReservations{}, []domain.AvailabilityRule{mondayRule(t)}, true)

	in := validReserveInput(t)
	in.Slot.End = mustTime(t, "10:30")

	_, err := svc.Reserve(context.Background(), in)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %T %v, want *ValidationError", err, err)
	}
}

func TestReserve_PrecheckRejectsTakenSlot(t *testing.T) {
	repo := &fakeReservations{
		scheduledStartsFn: func(ctx context.Context, providerID string, date time.Time, candidates []domain.TimeOfDay) (map[domain.TimeOfDay]struct{}, error) {
			return map[domain.TimeOfDay]struct{}{candidates[0]: {}}, nil
		},
	}
	svc := newTestService(t, repo, []domain.AvailabilityRule{mondayRule(t)}, true)

	_, err := svc.Reserve(context.Background(), validReserveInput(t))
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}
}

func TestReserve_ConstraintConflictBecomesSlotTaken(t *testing.T) {
	repo := &fakeReservations{
		createFn: func(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
			return domain.Reservation{}, store.ErrConflict
		},
	}
	svc := newTestService(t, repo, []domain.AvailabilityRule{mondayRule(t)}, true)

	_, err := svc.Reserve(context.Background(), validReserveInput(t))
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}
}

func TestReserve_StorageOutageIsDistinguishable(t *testing.T) {
	repo := &fakeReservations{
		createFn: func(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
			return domain.Reservation{}, store.ErrUnavailable
		},
	}
	svc := newTestService(t, repo, []domain.AvailabilityRule{mondayRule(t)}, true)

	_, err := svc.Reserve(context.Background(), validReserveInput(t))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	if errors.Is(err, ErrSlotTaken) {
		t.Fatalf("outage must not look like a slot conflict")
	}
}

func TestReserve_Succeeds(t *testing.T) {
	var written domain.Reservation
	repo := &fakeReservations{
		createFn: func(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
			written = res
			res.ID = uuid.New()
			return res, nil
		},
	}
	svc := newTestService(t, repo, []domain.AvailabilityRule{mondayRule(t)}, true)

	in := validReserveInput(t)
	in.SubjectNotes = "  first session  "
	out, err := svc.Reserve(context.Background(), in)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	if written.Status != domain.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", written.Status)
	}
	if !written.Date.Equal(domain.CivilDate(fixedNow)) {
		t.Fatalf("date = %v, want %v", written.Date, domain.CivilDate(fixedNow))
	}
	if written.SubjectNotes != "first session" {
		t.Fatalf("subject_notes = %q, want trimmed", written.SubjectNotes)
	}
	if out.ID == uuid.Nil {
		t.Fatalf("expected assigned id")
	}
}

func TestReserve_ConcurrentDuplicateSlot(t *testing.T) {
	mem := newMemReservations()
	svc := newTestService(t, mem, []domain.AvailabilityRule{mondayRule(t)}, true)

	in := validReserveInput(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempt := in
			attempt.SubjectID = "s" + string(rune('1'+i))
			_, errs[i] = svc.Reserve(context.Background(), attempt)
		}(i)
	}
	wg.Wait()

	var won, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || taken != 1 {
		t.Fatalf("won = %d, taken = %d, want exactly one of each", won, taken)
	}
	if n := mem.scheduledCount(in.ProviderID, domain.CivilDate(in.Date), in.Slot.Start); n != 1 {
		t.Fatalf("scheduled rows = %d, want 1", n)
	}
}

func TestListAvailableSlots_ExcludesBookedStart(t *testing.T) {
	mem := newMemReservations()
	svc := newTestService(t, mem, []domain.AvailabilityRule{mondayRule(t)}, true)

	before, err := svc.ListAvailableSlots(context.Background(), "p1", fixedNow)
	if err != nil {
		t.Fatalf("ListAvailableSlots error: %v", err)
	}
	if len(before) != 2 {
		t.Fatalf("len(before) = %d, want 2", len(before))
	}

	if _, err := svc.Reserve(context.Background(), validReserveInput(t)); err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	after, err := svc.ListAvailableSlots(context.Background(), "p1", fixedNow)
	if err != nil {
		t.Fatalf("ListAvailableSlots error: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("len(after) = %d, want 1", len(after))
	}
	if after[0].Start == mustTime(t, "09:00") {
		t.Fatalf("booked slot 09:00 still listed")
	}
}

func TestListAvailableSlots_NoSlotsSkipsIndexLookup(t *testing.T) {
	repo := &fakeReservations{
		scheduledStartsFn: func(ctx context.Context, providerID string, date time.Time, candidates []domain.TimeOfDay) (map[domain.TimeOfDay]struct{}, error) {
			panic("occupied-starts lookup with no candidate slots")
		},
	}
	// No rules: the day expands to zero slots.
	svc := newTestService(t, repo, nil, true)

	slots, err := svc.ListAvailableSlots(context.Background(), "p1", fixedNow)
	if err != nil {
		t.Fatalf("ListAvailableSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("len(slots) = %d, want 0", len(slots))
	}
}

func TestListBookableDates_EveryDateHasActiveRule(t *testing.T) {
	rules := []domain.AvailabilityRule{mondayRule(t)}
	wednesday := mondayRule(t)
	wednesday.DayOfWeek = 3
	rules = append(rules, wednesday)

	svc := newTestService(t, &fakeReservations{}, rules, true)

	dates, err := svc.ListBookableDates(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("ListBookableDates error: %v", err)
	}
	if len(dates) == 0 {
		t.Fatalf("expected dates")
	}
	for _, d := range dates {
		if d.DayOfWeek != 1 && d.DayOfWeek != 3 {
			t.Fatalf("date %v has weekday %d without an active rule", d.Date, d.DayOfWeek)
		}
	}
}

func TestCancel_TerminalStateIsInvalidTransition(t *testing.T) {
	completed := domain.Reservation{
		ID:         uuid.New(),
		ProviderID: "p1",
		SubjectID:  "s1",
		Date:       domain.CivilDate(fixedNow),
		StartTime:  mustTime(t, "09:00"),
		EndTime:    mustTime(t, "10:00"),
		Status:     domain.StatusCompleted,
	}
	// transitionFn left nil: a write attempt would panic.
	repo := &fakeReservations{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
			return completed, nil
		},
	}
	svc := newTestService(t, repo, nil, true)

	res, err := svc.Cancel(context.Background(), completed.ID, "s1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if res.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed (unchanged)", res.Status)
	}
}

func TestCancel_AfterStartIsInvalidTransition(t *testing.T) {
	started := domain.Reservation{
		ID:         uuid.New(),
		ProviderID: "p1",
		SubjectID:  "s1",
		Date:       domain.CivilDate(fixedNow),
		StartTime:  mustTime(t, "07:00"), // started an hour before fixedNow
		EndTime:    mustTime(t, "08:00"),
		Status:     domain.StatusScheduled,
	}
	repo := &fakeReservations{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
			return started, nil
		},
	}
	svc := newTestService(t, repo, nil, true)

	if _, err := svc.Cancel(context.Background(), started.ID, "p1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancel_OutsiderRejected(t *testing.T) {
	scheduled := domain.Reservation{
		ID:         uuid.New(),
		ProviderID: "p1",
		SubjectID:  "s1",
		Date:       domain.CivilDate(fixedNow),
		StartTime:  mustTime(t, "09:00"),
		EndTime:    mustTime(t, "10:00"),
		Status:     domain.StatusScheduled,
	}
	repo := &fakeReservations{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
			return scheduled, nil
		},
	}
	svc := newTestService(t, repo, nil, true)

	_, err := svc.Cancel(context.Background(), scheduled.ID, "someone-else")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %T %v, want *ValidationError", err, err)
	}
}

func TestCancel_BySubjectBeforeStart(t *testing.T) {
	mem := newMemReservations()
	svc := newTestService(t, mem, []domain.AvailabilityRule{mondayRule(t)}, true)

	created, err := svc.Reserve(context.Background(), validReserveInput(t))
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), created.ID, "s1")
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
}

func TestComplete_BeforeStartRejected(t *testing.T) {
	scheduled := domain.Reservation{
		ID:         uuid.New(),
		ProviderID: "p1",
		SubjectID:  "s1",
		Date:       domain.CivilDate(fixedNow),
		StartTime:  mustTime(t, "09:00"), // an hour after fixedNow
		EndTime:    mustTime(t, "10:00"),
		Status:     domain.StatusScheduled,
	}
	repo := &fakeReservations{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
			return scheduled, nil
		},
	}
	svc := newTestService(t, repo, nil, true)

	if _, err := svc.Complete(context.Background(), scheduled.ID, "p1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestComplete_ProviderOnly(t *testing.T) {
	scheduled := domain.Reservation{
		ID:         uuid.New(),
		ProviderID: "p1",
		SubjectID:  "s1",
		Date:       domain.CivilDate(fixedNow),
		StartTime:  mustTime(t, "07:00"),
		EndTime:    mustTime(t, "08:00"),
		Status:     domain.StatusScheduled,
	}
	repo := &fakeReservations{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
			return scheduled, nil
		},
	}
	svc := newTestService(t, repo, nil, true)

	_, err := svc.Complete(context.Background(), scheduled.ID, "s1")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %T %v, want *ValidationError", err, err)
	}
}

func TestMarkNoShow_AfterStart(t *testing.T) {
	mem := newMemReservations()
	past := domain.Reservation{
		ProviderID: "p1",
		SubjectID:  "s1",
		Date:       domain.CivilDate(fixedNow),
		StartTime:  mustTime(t, "07:00"),
		EndTime:    mustTime(t, "08:00"),
		Status:     domain.StatusScheduled,
	}
	stored, err := mem.Create(context.Background(), past)
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}
	svc := newTestService(t, mem, nil, true)

	out, err := svc.MarkNoShow(context.Background(), stored.ID, "p1")
	if err != nil {
		t.Fatalf("MarkNoShow error: %v", err)
	}
	if out.Status != domain.StatusNoShow {
		t.Fatalf("status = %s, want no_show", out.Status)
	}
}

func TestTransition_RaceMapsToInvalidTransition(t *testing.T) {
	scheduled := domain.Reservation{
		ID:         uuid.New(),
		ProviderID: "p1",
		SubjectID:  "s1",
		Date:       domain.CivilDate(fixedNow),
		StartTime:  mustTime(t, "09:00"),
		EndTime:    mustTime(t, "10:00"),
		Status:     domain.StatusScheduled,
	}
	repo := &fakeReservations{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
			return scheduled, nil
		},
		transitionFn: func(ctx context.Context, id uuid.UUID, to domain.ReservationStatus) (domain.Reservation, error) {
			// A competing transition won between the read and the write.
			raced := scheduled
			raced.Status = domain.StatusCancelled
			return raced, store.ErrConflict
		},
	}
	svc := newTestService(t, repo, nil, true)

	if _, err := svc.Cancel(context.Background(), scheduled.ID, "s1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestReserve_ValidationBeforeLinkCheck(t *testing.T) {
	svc := newTestService(t, &fakeReservations{}, nil, false)

	in := validReserveInput(t)
	in.SubjectID = ""

	_, err := svc.Reserve(context.Background(), in)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %T %v, want *ValidationError", err, err)
	}
}
