package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wakebell/internal/eventbus"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "alarm": {"enabled": false, "hour": 9, "minute": 0},
  "logging": {"level": "error", "console": false, "file": {"enabled": false, "path": ""}},
  "ring": {"mission": "none"}
}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	a, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.logs.Close() })
	return a
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, kind string) eventbus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %q event arrived", kind)
		}
	}
}

func TestFiringPublishesAlarmFiredAndRingOpened(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	ch, unsub := a.bus.Subscribe(8)
	defer unsub()

	a.openRing()

	fired := waitEvent(t, ch, eventbus.AlarmFired)
	if fired.Time.IsZero() {
		t.Fatal("alarm.fired must carry the firing instant")
	}
	waitEvent(t, ch, eventbus.RingOpened)
}

func TestDismissClosesRing(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	ch, unsub := a.bus.Subscribe(8)
	defer unsub()

	if got := a.Dismiss(""); got != "No alarm is ringing." {
		t.Fatalf("dismiss without a ring = %q", got)
	}

	a.openRing()
	reply := a.Dismiss("")
	if !strings.HasPrefix(reply, "Alarm dismissed") {
		t.Fatalf("dismiss reply = %q", reply)
	}
	waitEvent(t, ch, eventbus.RingClosed)

	if got := a.Dismiss(""); got != "No alarm is ringing." {
		t.Fatalf("second dismiss = %q", got)
	}
}
