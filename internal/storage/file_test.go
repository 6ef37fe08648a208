package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wakebell/pkg/logx"
)

func newFileStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "wakebell")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func entry(firedAt time.Time, outcome string) RingEntry {
	e := RingEntry{
		FiredAt:  firedAt,
		Duration: 90 * time.Second,
		Outcome:  outcome,
		Mission:  "13 × 4 + 20 = ?",
		Attempts: 2,
	}
	if outcome == OutcomeDismissed {
		e.DismissedAt = firedAt.Add(e.Duration)
	}
	return e
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileAppendAndList(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	ctx := context.Background()

	base := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		outcome := OutcomeDismissed
		if i%2 == 1 {
			outcome = OutcomeTimeout
		}
		if err := st.AppendRing(ctx, entry(base.AddDate(0, 0, i), outcome)); err != nil {
			t.Fatalf("AppendRing: %v", err)
		}
	}

	all, err := st.ListRings(ctx, time.Time{}, 0)
	if err != nil {
		t.Fatalf("ListRings: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d entries, want 5", len(all))
	}
	if !all[0].FiredAt.Equal(base) {
		t.Fatalf("first entry fired at %v, want %v", all[0].FiredAt, base)
	}
	if all[0].Mission == "" || all[0].Attempts != 2 {
		t.Fatalf("round-trip lost fields: %+v", all[0])
	}

	// since filter
	recent, err := st.ListRings(ctx, base.AddDate(0, 0, 3), 0)
	if err != nil {
		t.Fatalf("ListRings(since): %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("since filter returned %d entries, want 2", len(recent))
	}

	// limit keeps the newest entries
	last, err := st.ListRings(ctx, time.Time{}, 2)
	if err != nil {
		t.Fatalf("ListRings(limit): %v", err)
	}
	if len(last) != 2 || !last[1].FiredAt.Equal(base.AddDate(0, 0, 4)) {
		t.Fatalf("limit returned %+v", last)
	}
}

func TestFilePrune(t *testing.T) {
	t.Parallel()
	st := newFileStore(t)
	ctx := context.Background()

	base := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := st.AppendRing(ctx, entry(base.AddDate(0, 0, i), OutcomeDismissed)); err != nil {
			t.Fatalf("AppendRing: %v", err)
		}
	}

	n, err := st.Prune(ctx, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}

	left, err := st.ListRings(ctx, time.Time{}, 0)
	if err != nil {
		t.Fatalf("ListRings: %v", err)
	}
	if len(left) != 2 || left[0].FiredAt.Before(base.AddDate(0, 0, 2)) {
		t.Fatalf("after prune: %+v", left)
	}

	// Appends still work after the compaction swapped the file.
	if err := st.AppendRing(ctx, entry(base.AddDate(0, 0, 9), OutcomeTimeout)); err != nil {
		t.Fatalf("AppendRing after prune: %v", err)
	}
	left, err = st.ListRings(ctx, time.Time{}, 0)
	if err != nil || len(left) != 3 {
		t.Fatalf("after post-prune append: %d entries, err %v", len(left), err)
	}
}

func TestFileSkipsTornTailLine(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "wakebell")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.AppendRing(ctx, entry(time.Now().UTC(), OutcomeDismissed)); err != nil {
		t.Fatalf("AppendRing: %v", err)
	}

	// Simulate a crash mid-append.
	f, err := os.OpenFile(filepath.Join(dir, "wakebell.rings.jsonl"), os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := f.WriteString(`{"fired_at":"2024-`); err != nil {
		t.Fatalf("write torn line: %v", err)
	}
	_ = f.Close()

	all, err := st.ListRings(ctx, time.Time{}, 0)
	if err != nil {
		t.Fatalf("ListRings: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d entries, want the 1 intact record", len(all))
	}
}
