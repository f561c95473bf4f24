// Package shift implements pure calendar arithmetic for the three fixed
// daily work shifts. All computations are anchored to one organizational
// timezone regardless of where the viewer is; a reservation made from
// another country refers to the same wall-clock window as one made on site.
//
// Every shift boundary sits at :45 past the hour. The three windows
// partition each 24-hour day with no gaps and no overlaps once the night
// shift's wraparound is resolved.
package shift

import "time"

// BoundaryMinute is the minute-of-hour at which every shift boundary sits.
const BoundaryMinute = 45

// Shift is one of the three fixed recurring daily work periods.
// Hour anchors range 0-31; values >= 24 denote the next calendar day,
// which is how the night shift expresses its wraparound.
type Shift struct {
	ID        string `json:"id" yaml:"id"`
	Label     string `json:"label" yaml:"label"`
	StartHour int    `json:"start_hour" yaml:"start_hour"`
	EndHour   int    `json:"end_hour" yaml:"end_hour"`
}

// Wraps reports whether the shift crosses midnight.
func (s Shift) Wraps() bool {
	return s.EndHour >= 24
}

// startMinutes and endMinutes are boundaries in minutes since midnight,
// folded into a single day for classification.
func (s Shift) startMinutes() int {
	return (s.StartHour%24)*60 + BoundaryMinute
}

func (s Shift) endMinutes() int {
	return (s.EndHour%24)*60 + BoundaryMinute
}

// Occurrence is the concrete absolute window of one shift on one calendar
// day. For the night shift the window spans two calendar dates.
type Occurrence struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the half-open window [Start, End).
// An instant exactly at End belongs to the next window, never this one.
func (o Occurrence) Contains(t time.Time) bool {
	return !t.Before(o.Start) && t.Before(o.End)
}

// ContainsRange reports whether [start, end) is fully inside the window.
func (o Occurrence) ContainsRange(start, end time.Time) bool {
	return !start.Before(o.Start) && !end.After(o.End)
}

// DefaultShifts returns the standard deployment set:
// morning 06:45-14:45, afternoon 14:45-23:45, night 23:45-06:45 next day.
func DefaultShifts() [3]Shift {
	return [3]Shift{
		{ID: "morning", Label: "Mañana", StartHour: 6, EndHour: 14},
		{ID: "afternoon", Label: "Tarde", StartHour: 14, EndHour: 23},
		{ID: "night", Label: "Noche", StartHour: 23, EndHour: 30},
	}
}

// Calendar resolves shifts to concrete occurrences in one fixed timezone.
type Calendar struct {
	shifts [3]Shift
	loc    *time.Location
}

// NewCalendar creates a calendar over the given shift set and anchor
// timezone.
func NewCalendar(shifts [3]Shift, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{shifts: shifts, loc: loc}
}

// Shifts returns the configured shift set.
func (c *Calendar) Shifts() [3]Shift {
	return c.shifts
}

// Location returns the anchor timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// ByID looks up a shift by its symbolic identifier.
func (c *Calendar) ByID(id string) (Shift, bool) {
	for _, s := range c.shifts {
		if s.ID == id {
			return s, true
		}
	}
	return Shift{}, false
}

// OccurrenceOf computes the absolute window of s containing or most
// relevant to ref.
//
// Non-wrapping shifts yield today's window. The night shift has three
// branches: at or after the start boundary the occurrence runs
// today..tomorrow; before the end boundary the viewer is still inside
// last night's occurrence, which runs yesterday..today; any daytime
// instant yields the upcoming occurrence (today..tomorrow) so selecting
// tonight's shift in advance resolves sensibly.
func (c *Calendar) OccurrenceOf(s Shift, ref time.Time) Occurrence {
	ref = ref.In(c.loc)
	// time.Date normalizes hour values >= 24 onto the next day.
	start := time.Date(ref.Year(), ref.Month(), ref.Day(), s.StartHour, BoundaryMinute, 0, 0, c.loc)
	end := time.Date(ref.Year(), ref.Month(), ref.Day(), s.EndHour, BoundaryMinute, 0, 0, c.loc)

	if !s.Wraps() {
		return Occurrence{Start: start, End: end}
	}

	tod := ref.Hour()*60 + ref.Minute()
	if tod < s.endMinutes() {
		// Early-morning tail of last night's occurrence.
		return Occurrence{Start: start.AddDate(0, 0, -1), End: end.AddDate(0, 0, -1)}
	}
	return Occurrence{Start: start, End: end}
}

// Active classifies ref into exactly one shift using minute-granularity
// half-open comparison. The second return value is false only when no
// shift window contains ref, which is unreachable for a shift set that
// partitions the day; callers should log it as an invariant violation.
// The first shift is returned as a safe fallback in that case.
func (c *Calendar) Active(ref time.Time) (Shift, bool) {
	ref = ref.In(c.loc)
	tod := ref.Hour()*60 + ref.Minute()

	for _, s := range c.shifts {
		if s.Wraps() {
			if tod >= s.startMinutes() || tod < s.endMinutes() {
				return s, true
			}
			continue
		}
		if tod >= s.startMinutes() && tod < s.endMinutes() {
			return s, true
		}
	}
	return c.shifts[0], false
}
