package schedule

import (
	"context"
	"fmt"
	"time"
)

// ConflictQuery answers whether any persisted reservation overlaps a range.
// excludeID > 0 leaves that reservation out of the conflict set, so an
// edited reservation does not conflict with itself.
type ConflictQuery interface {
	HasOverlap(ctx context.Context, r TimeRange, excludeID int64) (bool, error)
}

// DaySlot is one cell of a day's availability grid. Derived on every
// request, never persisted.
type DaySlot struct {
	Range     TimeRange
	Available bool
}

// Validator decides whether a candidate time range is bookable. It holds no
// locks and performs no writes; the caller persists on success.
type Validator struct {
	Calendar  Calendar
	Conflicts ConflictQuery

	// Now is the clock used for the no-past-bookings rule. Nil means
	// time.Now; tests inject a fixed instant.
	Now func() time.Time
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Validate applies the booking rules in order and returns the first
// violation as a *RuleError. The order is fixed so users always see the
// same message for the same input. Errors from the conflict query are
// returned as-is.
func (v *Validator) Validate(ctx context.Context, r TimeRange, excludeID int64) error {
	if !r.End.After(r.Start) {
		return ruleErr(ReasonEndBeforeStart, "end time must be after start time")
	}

	if r.Duration() > v.Calendar.MaxDuration {
		return ruleErr(ReasonDurationExceeded,
			fmt.Sprintf("maximum booking duration is %s", formatDuration(v.Calendar.MaxDuration)))
	}

	if !r.Start.After(v.now()) {
		return ruleErr(ReasonInPast, "cannot book in the past")
	}

	if v.Calendar.IsClosedDay(r.Start) {
		return ruleErr(ReasonClosedDay,
			fmt.Sprintf("closed on %s", r.Start.Weekday()))
	}

	win := v.Calendar.OpeningWindow(r.Start)
	if r.Start.Before(win.Start) || r.End.After(win.End) {
		return ruleErr(ReasonOutsideHours,
			fmt.Sprintf("outside opening hours (%02d:00-%02d:00)", v.Calendar.OpenHour, v.Calendar.CloseHour))
	}

	if !v.Calendar.IsAligned(r.Start) || !v.Calendar.IsAligned(r.End) {
		return ruleErr(ReasonMisaligned,
			fmt.Sprintf("times must fall on %d-minute slot boundaries", int(v.Calendar.SlotInterval/time.Minute)))
	}

	conflict, err := v.Conflicts.HasOverlap(ctx, r, excludeID)
	if err != nil {
		return err
	}
	if conflict {
		return ruleErr(ReasonConflict, "this slot is already booked")
	}

	return nil
}

// IsBookable swallows the rule violation and keeps only the verdict.
// Infrastructure errors still surface.
func (v *Validator) IsBookable(ctx context.Context, r TimeRange) (bool, error) {
	err := v.Validate(ctx, r, 0)
	if err == nil {
		return true, nil
	}
	if AsRuleError(err) != nil {
		return false, nil
	}
	return false, err
}

// HasConflict exposes the raw conflict predicate.
func (v *Validator) HasConflict(ctx context.Context, r TimeRange, excludeID int64) (bool, error) {
	return v.Conflicts.HasOverlap(ctx, r, excludeID)
}

// DaySlots builds the availability grid for day's calendar date. Closed
// days yield an empty grid. Slots are constructed aligned and inside the
// opening window, so each one is probed with the conflict predicate only,
// not the full rule chain. A trailing slot that would cross the closing
// hour is dropped.
func (v *Validator) DaySlots(ctx context.Context, day time.Time) ([]DaySlot, error) {
	if v.Calendar.IsClosedDay(day) {
		return nil, nil
	}

	win := v.Calendar.OpeningWindow(day)
	var slots []DaySlot
	for cur := win.Start; !cur.Add(v.Calendar.SlotInterval).After(win.End); cur = cur.Add(v.Calendar.SlotInterval) {
		r := TimeRange{Start: cur, End: cur.Add(v.Calendar.SlotInterval)}
		conflict, err := v.Conflicts.HasOverlap(ctx, r, 0)
		if err != nil {
			return nil, err
		}
		slots = append(slots, DaySlot{Range: r, Available: !conflict})
	}
	return slots, nil
}

func formatDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}
