package domain

import "sort"

type TimeRange struct {
	Start TimeOfDay
	End   TimeOfDay
}

type Slot struct {
	Start TimeOfDay `json:"start_time"`
	End   TimeOfDay `json:"end_time"`
}

// GenerateSlots decomposes availability windows into fixed-duration slots.
// Each window is swept from its start in durationMinutes increments; a slot
// is emitted only when its end stays within the window, so no partial
// trailing slot is produced. Results from all windows are merged, ordered
// by start, and de-duplicated by start time (overlapping windows collapse).
func GenerateSlots(ranges []TimeRange, durationMinutes int) []Slot {
	if durationMinutes <= 0 {
		return nil
	}

	out := make([]Slot, 0, len(ranges)*4)
	for _, r := range ranges {
		for start := r.Start; start.Add(durationMinutes) <= r.End; start = start.Add(durationMinutes) {
			out = append(out, Slot{Start: start, End: start.Add(durationMinutes)})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	deduped := out[:0]
	for i, s := range out {
		if i > 0 && s.Start == out[i-1].Start {
			continue
		}
		deduped = append(deduped, s)
	}
	return deduped
}
