package alarm

import "time"

// maxScanDays bounds the day-at-a-time advance in nextFrom. Every supported
// recurrence qualifies within two days; the cap only guards against a future
// rule that never matches.
const maxScanDays = 366

// nextFrom computes the next qualifying alarm instant strictly after ref.
//
// The enabled check comes before any date arithmetic. An alarm instant
// exactly equal to ref counts as already passed: a momentary coincidence must
// resolve to "look further", never to "fire now".
func nextFrom(cfg *Config, ref time.Time) (time.Time, bool) {
	if cfg == nil || !cfg.Enabled {
		return time.Time{}, false
	}

	day := dateOnly(ref)
	cand := atAlarmTime(cfg, day)
	if cand.After(ref) && workDay(cfg, day) {
		return cand, true
	}

	// Advance whole days until one qualifies. Deliberately a scan, not a
	// period shortcut, so irregular future rules stay correct.
	for i := 0; i < maxScanDays; i++ {
		day = day.AddDate(0, 0, 1)
		if workDay(cfg, day) {
			return atAlarmTime(cfg, day), true
		}
	}
	return time.Time{}, false
}

// workDay reports whether the recurrence rule permits firing on the given
// date. A nil config is permissive: callers may probe speculatively before
// initialization.
func workDay(cfg *Config, date time.Time) bool {
	if cfg == nil || cfg.Recurrence != EveryOtherDay {
		return true
	}
	diff := dayNumber(date) - dayNumber(cfg.StartDate)
	// Even differences yield 0 for either sign, so the parity rule holds
	// symmetrically for dates before the start date.
	return diff%2 == 0
}

func atAlarmTime(cfg *Config, day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), cfg.Hour, cfg.Minute, 0, 0, day.Location())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dayNumber maps a calendar date to a whole-day count. The date is re-read
// in UTC so DST-length local days cannot skew the difference; midnights UTC
// are exact multiples of 86400, so the division is exact.
func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
