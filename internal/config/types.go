package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Alarm   AlarmConfig   `json:"alarm"`
	Logging LoggingConfig `json:"logging"`

	Wake WakeConfig `json:"wake,omitempty"`
	Ring RingConfig `json:"ring,omitempty"`

	// Storage controls ring-session persistence. If omitted, nothing is
	// persisted and stats commands report empty.
	Storage *StorageConfig `json:"storage,omitempty"`
	Stats   StatsConfig    `json:"stats,omitempty"`

	// Telegram enables the Telegram bell. If omitted, only the log bell
	// rings.
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// AlarmConfig is the declarative alarm description.
//
// StartDate is a date-only value ("2006-01-02") used as day zero for the
// every-other-day pattern; its time-of-day, if any, is discarded.
type AlarmConfig struct {
	Enabled bool `json:"enabled"`
	Hour    int  `json:"hour"`
	Minute  int  `json:"minute"`
	// Recurrence is "daily" (default) or "every-other-day".
	Recurrence string `json:"recurrence,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
}

// WakeConfig tunes suspend/resume detection.
// All durations are Go duration strings (e.g. "30s", "2m").
type WakeConfig struct {
	Interval     string `json:"interval,omitempty"`      // default "30s"
	GapThreshold string `json:"gap_threshold,omitempty"` // default "2m"
}

// RingConfig controls what happens between a firing and its dismissal.
type RingConfig struct {
	// Timeout closes an undismissed ring session. Default "10m".
	Timeout string `json:"timeout,omitempty"`
	// Mission is "math" (arithmetic challenge, default) or "none"
	// (any /dismiss closes the ring).
	Mission string `json:"mission,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the ring-session store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./wakebell_store" }
type StorageConfig struct {
	Driver      string `json:"driver"` // "file", "sqlite" or "none"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// StatsConfig controls retention of recorded ring sessions.
type StatsConfig struct {
	// Retention is how long ring sessions are kept. Default "2160h" (90 days).
	Retention string `json:"retention,omitempty"`
	// PruneSpec is the cron spec for the maintenance job. Default "@daily".
	PruneSpec string `json:"prune_spec,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

// Validate checks the fields the daemon cannot sensibly default. Hot reload
// rejects configs that fail here, keeping the previous config live.
func (c *Config) Validate() error {
	a := c.Alarm
	if a.Hour < 0 || a.Hour > 23 {
		return fmt.Errorf("alarm.hour: %d out of range 0-23", a.Hour)
	}
	if a.Minute < 0 || a.Minute > 59 {
		return fmt.Errorf("alarm.minute: %d out of range 0-59", a.Minute)
	}
	switch strings.TrimSpace(a.Recurrence) {
	case "", "daily":
	case "every-other-day":
		// The pattern counts days from its day-zero anchor; without one it
		// is meaningless.
		if strings.TrimSpace(a.StartDate) == "" {
			return errors.New("alarm.start_date is required for every-other-day recurrence")
		}
		if _, err := ParseDateField("alarm.start_date", a.StartDate); err != nil {
			return err
		}
	default:
		return fmt.Errorf("alarm.recurrence: unknown value %q", a.Recurrence)
	}
	if a.Recurrence != "every-other-day" && strings.TrimSpace(a.StartDate) != "" {
		if _, err := ParseDateField("alarm.start_date", a.StartDate); err != nil {
			return err
		}
	}

	for _, f := range []struct{ path, raw string }{
		{"wake.interval", c.Wake.Interval},
		{"wake.gap_threshold", c.Wake.GapThreshold},
		{"ring.timeout", c.Ring.Timeout},
		{"stats.retention", c.Stats.Retention},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	switch m := strings.TrimSpace(c.Ring.Mission); m {
	case "", "math", "none":
	default:
		return fmt.Errorf("ring.mission: unknown value %q", m)
	}

	if c.Storage != nil {
		switch d := strings.ToLower(strings.TrimSpace(c.Storage.Driver)); d {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown value %q", d)
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}

	if c.Telegram != nil {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			return errors.New("telegram.token is required when the telegram section is present")
		}
		if c.Telegram.ChatID == 0 {
			return errors.New("telegram.chat_id is required when the telegram section is present")
		}
		if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
			return err
		}
	}

	return nil
}
