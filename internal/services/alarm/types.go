package alarm

import (
	"time"
)

// Recurrence selects which calendar dates qualify as work days.
type Recurrence string

const (
	// Daily fires every day.
	Daily Recurrence = "daily"
	// EveryOtherDay fires on days whose whole-day distance to the start
	// date is even. The start date itself is always a work day.
	EveryOtherDay Recurrence = "every-other-day"
)

// Config is the declarative alarm description. It is treated as immutable
// per update cycle; Apply() installs a merged copy rather than mutating the
// stored value.
//
// Hour/Minute define a time of day independent of date. StartDate is
// normalized to a date-only value before any day-count arithmetic; its
// time-of-day component is ignored.
type Config struct {
	Enabled    bool
	Hour       int // 0-23
	Minute     int // 0-59
	Recurrence Recurrence
	StartDate  time.Time // day-zero reference for EveryOtherDay
}

// Patch is a partial config for Apply(). Nil fields keep their prior values.
type Patch struct {
	Enabled    *bool
	Hour       *int
	Minute     *int
	Recurrence *Recurrence
	StartDate  *time.Time
}

func (p Patch) merge(cfg Config) Config {
	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}
	if p.Hour != nil {
		cfg.Hour = *p.Hour
	}
	if p.Minute != nil {
		cfg.Minute = *p.Minute
	}
	if p.Recurrence != nil {
		cfg.Recurrence = *p.Recurrence
	}
	if p.StartDate != nil {
		cfg.StartDate = *p.StartDate
	}
	return cfg
}

// Callbacks is the outbound interface of the engine. Any field may be nil.
//
// Callbacks are invoked without the service mutex held, so they may call
// back into the service.
type Callbacks struct {
	// OnAlarm is invoked when the armed countdown fires. The receiver is
	// responsible for ringing bells, collecting the dismissal and recording
	// statistics; the engine observes none of that.
	OnAlarm func()

	// OnNextAlarm is invoked with the freshly computed next alarm instant
	// whenever it changes: after Init, after every Apply, after every
	// fire-and-rearm, after Stop/disable and after wake recovery.
	// ok=false means no alarm is pending.
	OnNextAlarm func(at time.Time, ok bool)

	// OnWake is invoked on every host resume notification, purely
	// informational. gap is the wall-clock time the host was away.
	OnWake func(gap time.Duration)
}
