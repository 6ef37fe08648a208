package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"wakebell/pkg/logx"
)

// Store is the minimal persistence API used by the app and stats service.
type Store interface {
	AppendRing(ctx context.Context, e RingEntry) error
	// ListRings returns entries fired at or after since, oldest first.
	// limit <= 0 means no limit.
	ListRings(ctx context.Context, since time.Time, limit int) ([]RingEntry, error)
	// Prune removes entries fired before the cutoff and reports how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
