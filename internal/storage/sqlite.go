package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"wakebell/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendRing(ctx context.Context, e RingEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	var dismissed any
	if !e.DismissedAt.IsZero() {
		dismissed = e.DismissedAt.Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rings(fired_at, dismissed_at, duration_ms, outcome, mission, attempts)
		 VALUES(?,?,?,?,?,?)`,
		e.FiredAt.Format(time.RFC3339Nano), dismissed, e.Duration.Milliseconds(),
		e.Outcome, nullStr(e.Mission), e.Attempts,
	)
	return err
}

func (s *sqliteStore) ListRings(ctx context.Context, since time.Time, limit int) ([]RingEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	q := `SELECT fired_at, dismissed_at, duration_ms, outcome, mission, attempts
	      FROM rings WHERE fired_at >= ? ORDER BY fired_at`
	args := []any{since.Format(time.RFC3339Nano)}
	if limit > 0 {
		// Newest N, returned oldest first.
		q = `SELECT fired_at, dismissed_at, duration_ms, outcome, mission, attempts FROM (
		       SELECT * FROM rings WHERE fired_at >= ? ORDER BY fired_at DESC LIMIT ?
		     ) ORDER BY fired_at`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RingEntry
	for rows.Next() {
		var (
			fired     string
			dismissed sql.NullString
			durMS     int64
			outcome   string
			mission   sql.NullString
			attempts  int
		)
		if err := rows.Scan(&fired, &dismissed, &durMS, &outcome, &mission, &attempts); err != nil {
			return nil, err
		}
		e := RingEntry{
			Duration: time.Duration(durMS) * time.Millisecond,
			Outcome:  outcome,
			Mission:  mission.String,
			Attempts: attempts,
		}
		if e.FiredAt, err = time.Parse(time.RFC3339Nano, fired); err != nil {
			return nil, err
		}
		if dismissed.Valid {
			if e.DismissedAt, err = time.Parse(time.RFC3339Nano, dismissed.String); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Prune(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rings WHERE fired_at < ?`, before.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
