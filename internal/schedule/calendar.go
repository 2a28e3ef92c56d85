package schedule

import "time"

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether two ranges intersect. Open-interval semantics:
// touching endpoints do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Calendar holds the business-hour rules for a single venue. Values are
// read from configuration at startup and never mutated afterwards.
type Calendar struct {
	OpenHour       int
	CloseHour      int
	SlotInterval   time.Duration
	MaxDuration    time.Duration
	ClosedWeekdays map[time.Weekday]bool
	Location       *time.Location
}

// DefaultCalendar matches the venue's standing hours: open 08:00-19:00,
// 30-minute slots, 4-hour booking cap, closed on Sundays.
func DefaultCalendar() Calendar {
	return Calendar{
		OpenHour:       8,
		CloseHour:      19,
		SlotInterval:   30 * time.Minute,
		MaxDuration:    4 * time.Hour,
		ClosedWeekdays: map[time.Weekday]bool{time.Sunday: true},
		Location:       time.Local,
	}
}

func (c Calendar) IsClosedDay(t time.Time) bool {
	return c.ClosedWeekdays[t.Weekday()]
}

// OpeningWindow returns the open-to-close range for t's calendar day,
// in t's own location.
func (c Calendar) OpeningWindow(t time.Time) TimeRange {
	year, month, day := t.Date()
	return TimeRange{
		Start: time.Date(year, month, day, c.OpenHour, 0, 0, 0, t.Location()),
		End:   time.Date(year, month, day, c.CloseHour, 0, 0, 0, t.Location()),
	}
}

// IsAligned reports whether t sits on a slot boundary. A timestamp with
// stray seconds can never equal a generated slot edge, so non-zero seconds
// count as misaligned.
func (c Calendar) IsAligned(t time.Time) bool {
	step := int(c.SlotInterval / time.Minute)
	if step <= 0 {
		return false
	}
	return t.Minute()%step == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
