package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures ring-session persistence.
//
// Driver values:
//   - "file": dependency-free JSONL backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Ring outcomes.
const (
	OutcomeDismissed = "dismissed"
	OutcomeTimeout   = "timeout"
)

// RingEntry records one closed ring session. Keep it compact and
// schema-stable.
type RingEntry struct {
	FiredAt     time.Time     `json:"fired_at"`
	DismissedAt time.Time     `json:"dismissed_at,omitempty"` // zero when timed out
	Duration    time.Duration `json:"duration"`
	Outcome     string        `json:"outcome"` // OutcomeDismissed or OutcomeTimeout
	Mission     string        `json:"mission,omitempty"`
	Attempts    int           `json:"attempts"`
}

// Summary aggregates recorded ring sessions.
type Summary struct {
	Total     int
	Dismissed int
	TimedOut  int
	AvgRing   time.Duration
}
