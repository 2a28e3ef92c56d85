package config

import (
	"testing"
	"time"
)

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays("Sunday, monday")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !days[time.Sunday] || !days[time.Monday] {
		t.Fatalf("expected Sunday and Monday closed, got %v", days)
	}
	if days[time.Tuesday] {
		t.Fatalf("Tuesday should not be closed")
	}
}

func TestParseWeekdays_Unknown(t *testing.T) {
	if _, err := ParseWeekdays("Funday"); err == nil {
		t.Fatalf("expected error for unknown weekday")
	}
}

func TestCalendarFromEnv_Defaults(t *testing.T) {
	cal, err := calendarFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cal.OpenHour != 8 || cal.CloseHour != 19 {
		t.Fatalf("hours = %d..%d, want 8..19", cal.OpenHour, cal.CloseHour)
	}
	if cal.SlotInterval != 30*time.Minute {
		t.Fatalf("slot interval = %v, want 30m", cal.SlotInterval)
	}
	if cal.MaxDuration != 4*time.Hour {
		t.Fatalf("max duration = %v, want 4h", cal.MaxDuration)
	}
	if !cal.ClosedWeekdays[time.Sunday] {
		t.Fatalf("Sunday should be closed by default")
	}
}

func TestCalendarFromEnv_Overrides(t *testing.T) {
	t.Setenv("OPEN_HOUR", "9")
	t.Setenv("CLOSE_HOUR", "17")
	t.Setenv("SLOT_INTERVAL_MINUTES", "15")
	t.Setenv("CLOSED_WEEKDAYS", "Saturday,Sunday")

	cal, err := calendarFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cal.OpenHour != 9 || cal.CloseHour != 17 {
		t.Fatalf("hours = %d..%d, want 9..17", cal.OpenHour, cal.CloseHour)
	}
	if cal.SlotInterval != 15*time.Minute {
		t.Fatalf("slot interval = %v, want 15m", cal.SlotInterval)
	}
	if !cal.ClosedWeekdays[time.Saturday] || !cal.ClosedWeekdays[time.Sunday] {
		t.Fatalf("expected weekend closed, got %v", cal.ClosedWeekdays)
	}
}

func TestCalendarFromEnv_RejectsInvertedHours(t *testing.T) {
	t.Setenv("OPEN_HOUR", "19")
	t.Setenv("CLOSE_HOUR", "8")

	if _, err := calendarFromEnv(); err == nil {
		t.Fatalf("expected error for close before open")
	}
}
