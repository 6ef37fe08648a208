package alarm

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.Local)
}

func everyOtherDay9(start time.Time) *Config {
	return &Config{
		Enabled:    true,
		Hour:       9,
		Minute:     0,
		Recurrence: EveryOtherDay,
		StartDate:  start,
	}
}

func TestNextFromEveryOtherDay(t *testing.T) {
	t.Parallel()
	cfg := everyOtherDay9(date(2024, time.January, 1))

	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		// Jan 1 is day zero, so odd-numbered January days are work days.
		{name: "work day before alarm time", ref: at(2024, time.January, 15, 8, 0), want: at(2024, time.January, 15, 9, 0)},
		{name: "rest day skips to next work day", ref: at(2024, time.January, 14, 8, 0), want: at(2024, time.January, 15, 9, 0)},
		{name: "work day after alarm time", ref: at(2024, time.January, 15, 10, 0), want: at(2024, time.January, 17, 9, 0)},
		{name: "exactly at alarm time looks further", ref: at(2024, time.January, 15, 9, 0), want: at(2024, time.January, 17, 9, 0)},
		{name: "one second before alarm time", ref: at(2024, time.January, 15, 8, 59).Add(59 * time.Second), want: at(2024, time.January, 15, 9, 0)},
		{name: "rest day after alarm time", ref: at(2024, time.January, 14, 10, 0), want: at(2024, time.January, 15, 9, 0)},
		{name: "ref before start date", ref: at(2023, time.December, 28, 12, 0), want: at(2023, time.December, 28+2, 9, 0)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nextFrom(cfg, tt.ref)
			if !ok {
				t.Fatalf("nextFrom(%v) reported no alarm", tt.ref)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("nextFrom(%v) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestNextFromDaily(t *testing.T) {
	t.Parallel()
	cfg := &Config{Enabled: true, Hour: 6, Minute: 30, Recurrence: Daily}

	got, ok := nextFrom(cfg, at(2024, time.March, 10, 5, 0))
	if !ok || !got.Equal(at(2024, time.March, 10, 6, 30)) {
		t.Fatalf("same-day alarm: got %v ok=%v", got, ok)
	}

	got, ok = nextFrom(cfg, at(2024, time.March, 10, 7, 0))
	if !ok || !got.Equal(at(2024, time.March, 11, 6, 30)) {
		t.Fatalf("next-day alarm: got %v ok=%v", got, ok)
	}

	// Empty recurrence behaves as daily.
	got, ok = nextFrom(&Config{Enabled: true, Hour: 6, Minute: 30}, at(2024, time.March, 10, 5, 0))
	if !ok || !got.Equal(at(2024, time.March, 10, 6, 30)) {
		t.Fatalf("default recurrence: got %v ok=%v", got, ok)
	}
}

func TestNextFromDisabledAndNil(t *testing.T) {
	t.Parallel()
	if _, ok := nextFrom(nil, time.Now()); ok {
		t.Fatal("nil config must yield no alarm")
	}
	cfg := &Config{Enabled: false, Hour: 9}
	if _, ok := nextFrom(cfg, time.Now()); ok {
		t.Fatal("disabled config must yield no alarm")
	}
}

func TestNextFromMidnightAlarm(t *testing.T) {
	t.Parallel()
	cfg := &Config{Enabled: true, Hour: 0, Minute: 0, Recurrence: Daily}

	// At exactly midnight the candidate equals ref and must roll to tomorrow.
	ref := at(2024, time.June, 1, 0, 0)
	got, ok := nextFrom(cfg, ref)
	if !ok || !got.Equal(at(2024, time.June, 2, 0, 0)) {
		t.Fatalf("midnight alarm: got %v ok=%v", got, ok)
	}
}

func TestNextFromStartDateWithTimeOfDay(t *testing.T) {
	t.Parallel()
	// A start date carrying 23:59 must count the same days as a clean
	// midnight start date.
	start := time.Date(2024, time.January, 1, 23, 59, 0, 0, time.Local)
	cfg := everyOtherDay9(start)

	got, ok := nextFrom(cfg, at(2024, time.January, 14, 8, 0))
	if !ok || !got.Equal(at(2024, time.January, 15, 9, 0)) {
		t.Fatalf("normalized start date: got %v ok=%v", got, ok)
	}
}

func TestWorkDayParity(t *testing.T) {
	t.Parallel()
	cfg := everyOtherDay9(date(2024, time.January, 10))

	tests := []struct {
		day  time.Time
		want bool
	}{
		{date(2024, time.January, 10), true},  // day zero
		{date(2024, time.January, 11), false},
		{date(2024, time.January, 12), true},
		{date(2024, time.January, 8), true},     // -2, symmetric before start
		{date(2024, time.January, 9), false},    // -1
		{date(2023, time.December, 31), true},   // -10
		{date(2023, time.December, 30), false},  // -11
		{date(2024, time.February, 9), true},    // +30
	}
	for _, tt := range tests {
		if got := workDay(cfg, tt.day); got != tt.want {
			t.Errorf("workDay(%s) = %v, want %v", tt.day.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestWorkDayPermissiveDefaults(t *testing.T) {
	t.Parallel()
	if !workDay(nil, date(2024, time.May, 5)) {
		t.Fatal("nil config must be permissive")
	}
	daily := &Config{Enabled: true, Recurrence: Daily}
	if !workDay(daily, date(2024, time.May, 5)) {
		t.Fatal("daily recurrence must treat every day as a work day")
	}
}

func TestDayNumberAcrossDSTChange(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 2024-03-31 is the 23-hour spring-forward day in Berlin. Day counting
	// must still advance by exactly one per calendar day.
	a := time.Date(2024, time.March, 30, 12, 0, 0, 0, loc)
	b := time.Date(2024, time.April, 1, 12, 0, 0, 0, loc)
	if diff := dayNumber(b) - dayNumber(a); diff != 2 {
		t.Fatalf("dayNumber diff across DST = %d, want 2", diff)
	}
}
