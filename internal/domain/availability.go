package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AvailabilityRule is one recurring weekly window a provider accepts
// reservations in. Multiple rules per provider/day are allowed; rules are
// retired by deactivation, not deletion.
type AvailabilityRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID string    `bun:"provider_id,notnull"`
	DayOfWeek  int       `bun:"day_of_week,notnull"`
	StartTime  TimeOfDay `bun:"start_time,notnull"`
	EndTime    TimeOfDay `bun:"end_time,notnull"`
	IsActive   bool      `bun:"is_active,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (r *AvailabilityRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
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

// RelationshipLink authorizes a subject to book with a provider. At most
// one link per subject exists; this core only reads it.
type RelationshipLink struct {
	bun.BaseModel `bun:"table:relationship_links"`

	SubjectID  string    `bun:"subject_id,pk"`
	ProviderID string    `bun:"provider_id,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

type BookableDate struct {
	Date      time.Time
	DayOfWeek int
}

// ExpandBookableDates maps weekly rules onto concrete dates in
// [referenceDate, referenceDate+horizonDays), ascending. A date qualifies
// when at least one active rule exists for its weekday. An empty rule set
// expands to nothing.
func ExpandBookableDates(rules []AvailabilityRule, horizonDays int, referenceDate time.Time) []BookableDate {
	activeDays := make(map[int]struct{}, len(rules))
	for _, r := range rules {
		if r.IsActive {
			activeDays[r.DayOfWeek] = struct{}{}
		}
	}

	out := make([]BookableDate, 0, horizonDays)
	start := CivilDate(referenceDate)
	for i := 0; i < horizonDays; i++ {
		date := start.AddDate(0, 0, i)
		weekday := int(date.Weekday())
		if _, ok := activeDays[weekday]; ok {
			out = append(out, BookableDate{Date: date, DayOfWeek: weekday})
		}
	}
	return out
}

// DayRanges collects the active availability windows for one weekday,
// ordered by start time.
func DayRanges(rules []AvailabilityRule, dayOfWeek int) []TimeRange {
	out := make([]TimeRange, 0, len(rules))
	for _, r := range rules {
		if !r.IsActive || r.DayOfWeek != dayOfWeek {
			continue
		}
		out = append(out, TimeRange{Start: r.StartTime, End: r.EndTime})
	}
	for i := 1; i < len(out); i++ {
		key := out[i]
		j := i - 1
		for j >= 0 && out[j].Start > key.Start {
			out[j+1] = out[j]
			j--
		}
		out[j+1] = key
	}
	return out
}
