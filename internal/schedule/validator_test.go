package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeReservation struct {
	id int64
	r  TimeRange
}

type fakeConflicts struct {
	reservations []fakeReservation
	err          error
}

func (f *fakeConflicts) HasOverlap(ctx context.Context, r TimeRange, excludeID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, res := range f.reservations {
		if excludeID > 0 && res.id == excludeID {
			continue
		}
		if r.Overlaps(res.r) {
			return true, nil
		}
	}
	return false, nil
}

// newValidator returns a validator whose clock is pinned to Monday
// 2025-06-02 07:00 UTC, one hour before opening.
func newValidator(conflicts *fakeConflicts) *Validator {
	return &Validator{
		Calendar:  DefaultCalendar(),
		Conflicts: conflicts,
		Now: func() time.Time {
			return time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)
		},
	}
}

func rng(t *testing.T, day, sh, sm, eh, em int) TimeRange {
	t.Helper()
	return TimeRange{
		Start: mustTime(t, 2025, 6, day, sh, sm),
		End:   mustTime(t, 2025, 6, day, eh, em),
	}
}

func wantReason(t *testing.T, err error, reason Reason) {
	t.Helper()
	re := AsRuleError(err)
	if re == nil {
		t.Fatalf("expected rule error %q, got %v", reason, err)
	}
	if re.Reason != reason {
		t.Fatalf("reason = %q, want %q (message %q)", re.Reason, reason, re.Message)
	}
}

func TestValidate_OK(t *testing.T) {
	v := newValidator(&fakeConflicts{})
	if err := v.Validate(context.Background(), rng(t, 2, 10, 0, 11, 0), 0); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidate_EndBeforeStart(t *testing.T) {
	v := newValidator(&fakeConflicts{})

	err := v.Validate(context.Background(), rng(t, 2, 11, 0, 10, 0), 0)
	wantReason(t, err, ReasonEndBeforeStart)

	err = v.Validate(context.Background(), rng(t, 2, 10, 0, 10, 0), 0)
	wantReason(t, err, ReasonEndBeforeStart)
}

// The temporal-ordering check wins over every later rule, so a reversed
// range on a closed day in the past still reports end-before-start.
func TestValidate_OrderingWinsFirst(t *testing.T) {
	v := newValidator(&fakeConflicts{})
	err := v.Validate(context.Background(), rng(t, 1, 6, 15, 5, 15), 0)
	wantReason(t, err, ReasonEndBeforeStart)
}

func TestValidate_MaxDurationBoundary(t *testing.T) {
	v := newValidator(&fakeConflicts{})

	// Exactly four hours is allowed.
	if err := v.Validate(context.Background(), rng(t, 2, 8, 0, 12, 0), 0); err != nil {
		t.Fatalf("4h booking should pass, got %v", err)
	}

	// One second over the cap is not.
	over := TimeRange{
		Start: mustTime(t, 2025, 6, 2, 8, 0),
		End:   mustTime(t, 2025, 6, 2, 12, 0).Add(time.Second),
	}
	wantReason(t, v.Validate(context.Background(), over, 0), ReasonDurationExceeded)
}

func TestValidate_InPast(t *testing.T) {
	v := newValidator(&fakeConflicts{})

	// Start equal to "now" counts as past.
	atNow := TimeRange{
		Start: v.Now(),
		End:   v.Now().Add(time.Hour),
	}
	wantReason(t, v.Validate(context.Background(), atNow, 0), ReasonInPast)

	// Anything strictly after "now" clears the rule.
	v.Now = func() time.Time { return mustTime(t, 2025, 6, 2, 9, 59) }
	if err := v.Validate(context.Background(), rng(t, 2, 10, 0, 11, 0), 0); err != nil {
		t.Fatalf("booking after now should pass, got %v", err)
	}
}

func TestValidate_ClosedDay(t *testing.T) {
	v := newValidator(&fakeConflicts{})
	v.Now = func() time.Time { return mustTime(t, 2025, 5, 30, 7, 0) }

	// 2025-06-01 is a Sunday.
	err := v.Validate(context.Background(), rng(t, 1, 10, 0, 11, 0), 0)
	wantReason(t, err, ReasonClosedDay)
}

func TestValidate_OpeningHours(t *testing.T) {
	v := newValidator(&fakeConflicts{})

	// 07:30 start is before opening; hours check fires before alignment.
	err := v.Validate(context.Background(), rng(t, 2, 7, 30, 8, 30), 0)
	wantReason(t, err, ReasonOutsideHours)

	// Ending exactly at close is fine.
	if err := v.Validate(context.Background(), rng(t, 2, 18, 0, 19, 0), 0); err != nil {
		t.Fatalf("booking ending at close should pass, got %v", err)
	}

	// Running past close is not.
	err = v.Validate(context.Background(), rng(t, 2, 17, 30, 19, 30), 0)
	wantReason(t, err, ReasonOutsideHours)
}

func TestValidate_Misaligned(t *testing.T) {
	v := newValidator(&fakeConflicts{})

	err := v.Validate(context.Background(), rng(t, 2, 10, 15, 11, 15), 0)
	wantReason(t, err, ReasonMisaligned)

	// Aligned minutes but stray seconds.
	withSeconds := TimeRange{
		Start: mustTime(t, 2025, 6, 2, 10, 30).Add(45 * time.Second),
		End:   mustTime(t, 2025, 6, 2, 11, 30),
	}
	wantReason(t, v.Validate(context.Background(), withSeconds, 0), ReasonMisaligned)
}

func TestValidate_Conflict(t *testing.T) {
	conflicts := &fakeConflicts{reservations: []fakeReservation{
		{id: 1, r: rng(t, 2, 10, 0, 11, 0)},
		{id: 2, r: rng(t, 2, 13, 0, 14, 0)},
	}}
	v := newValidator(conflicts)

	err := v.Validate(context.Background(), rng(t, 2, 10, 30, 12, 0), 0)
	wantReason(t, err, ReasonConflict)

	// Open intervals: a range touching both neighbours fits between them.
	if err := v.Validate(context.Background(), rng(t, 2, 11, 0, 13, 0), 0); err != nil {
		t.Fatalf("touching endpoints should not conflict, got %v", err)
	}
}

func TestValidate_ExcludesSelfOnEdit(t *testing.T) {
	conflicts := &fakeConflicts{reservations: []fakeReservation{
		{id: 7, r: rng(t, 2, 10, 0, 11, 0)},
	}}
	v := newValidator(conflicts)

	// Re-validating reservation 7 with its own unchanged range.
	if err := v.Validate(context.Background(), rng(t, 2, 10, 0, 11, 0), 7); err != nil {
		t.Fatalf("reservation must not conflict with itself, got %v", err)
	}

	// Without the exclusion the same range conflicts.
	err := v.Validate(context.Background(), rng(t, 2, 10, 0, 11, 0), 0)
	wantReason(t, err, ReasonConflict)
}

func TestValidate_QueryErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	v := newValidator(&fakeConflicts{err: boom})

	err := v.Validate(context.Background(), rng(t, 2, 10, 0, 11, 0), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected infra error to propagate unchanged, got %v", err)
	}
	if AsRuleError(err) != nil {
		t.Fatalf("infra error must not look like a rule error")
	}
}

func TestIsBookable(t *testing.T) {
	v := newValidator(&fakeConflicts{})

	ok, err := v.IsBookable(context.Background(), rng(t, 2, 10, 0, 11, 0))
	if err != nil || !ok {
		t.Fatalf("IsBookable = (%v, %v), want (true, nil)", ok, err)
	}

	// Rule violation: verdict only, no error.
	ok, err = v.IsBookable(context.Background(), rng(t, 2, 10, 15, 11, 0))
	if err != nil || ok {
		t.Fatalf("IsBookable = (%v, %v), want (false, nil)", ok, err)
	}

	// Infra failure surfaces.
	boom := errors.New("query failed")
	v.Conflicts = &fakeConflicts{err: boom}
	ok, err = v.IsBookable(context.Background(), rng(t, 2, 10, 0, 11, 0))
	if ok || !errors.Is(err, boom) {
		t.Fatalf("IsBookable = (%v, %v), want (false, %v)", ok, err, boom)
	}
}

func TestDaySlots_ClosedDay(t *testing.T) {
	v := newValidator(&fakeConflicts{})

	slots, err := v.DaySlots(context.Background(), mustTime(t, 2025, 6, 1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %d", len(slots))
	}
}

func TestDaySlots_MondayGrid(t *testing.T) {
	v := newValidator(&fakeConflicts{})

	slots, err := v.DaySlots(context.Background(), mustTime(t, 2025, 6, 2, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 22 {
		t.Fatalf("got %d slots, want 22", len(slots))
	}
	if !slots[0].Range.Start.Equal(mustTime(t, 2025, 6, 2, 8, 0)) {
		t.Fatalf("first slot starts %v, want 08:00", slots[0].Range.Start)
	}
	last := slots[len(slots)-1]
	if !last.Range.End.Equal(mustTime(t, 2025, 6, 2, 19, 0)) {
		t.Fatalf("last slot ends %v, want 19:00", last.Range.End)
	}
	for i, s := range slots {
		if s.Range.Duration() != 30*time.Minute {
			t.Fatalf("slot %d width = %v, want 30m", i, s.Range.Duration())
		}
		if !s.Available {
			t.Fatalf("slot %d should be available on an empty day", i)
		}
	}
}

func TestDaySlots_MarksBookedSlots(t *testing.T) {
	conflicts := &fakeConflicts{reservations: []fakeReservation{
		{id: 1, r: rng(t, 2, 10, 0, 11, 0)},
	}}
	v := newValidator(conflicts)

	slots, err := v.DaySlots(context.Background(), mustTime(t, 2025, 6, 2, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range slots {
		booked := s.Range.Overlaps(rng(t, 2, 10, 0, 11, 0))
		if booked && s.Available {
			t.Fatalf("slot %v should be unavailable", s.Range)
		}
		if !booked && !s.Available {
			t.Fatalf("slot %v should be available", s.Range)
		}
	}
}

// When the open window does not divide evenly by the interval, the tail
// slot that would overrun closing is dropped rather than emitted.
func TestDaySlots_DropsOverrunningTail(t *testing.T) {
	v := newValidator(&fakeConflicts{})
	v.Calendar.OpenHour = 8
	v.Calendar.CloseHour = 10
	v.Calendar.SlotInterval = 45 * time.Minute

	slots, err := v.DaySlots(context.Background(), mustTime(t, 2025, 6, 2, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	if !slots[1].Range.End.Equal(mustTime(t, 2025, 6, 2, 9, 30)) {
		t.Fatalf("last slot ends %v, want 09:30", slots[1].Range.End)
	}
}

// A range Validate accepts must show up as an available slot in the grid,
// and vice versa, as long as nothing is inserted in between.
func TestDaySlots_ConsistentWithValidate(t *testing.T) {
	conflicts := &fakeConflicts{reservations: []fakeReservation{
		{id: 1, r: rng(t, 2, 14, 0, 15, 0)},
	}}
	v := newValidator(conflicts)

	slots, err := v.DaySlots(context.Background(), mustTime(t, 2025, 6, 2, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range slots {
		ok, err := v.IsBookable(context.Background(), s.Range)
		if err != nil {
			t.Fatalf("IsBookable(%v): %v", s.Range, err)
		}
		if ok != s.Available {
			t.Fatalf("slot %v: grid says available=%v, Validate says %v", s.Range, s.Available, ok)
		}
	}
}
