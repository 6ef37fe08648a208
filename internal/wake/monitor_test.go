package wake

import (
	"testing"
	"time"

	"wakebell/pkg/logx"
)

func TestTickBelowThresholdStaysQuiet(t *testing.T) {
	t.Parallel()
	m := NewMonitor(30*time.Second, 2*time.Minute, logx.Nop())
	ch, unsub := m.Subscribe(1)
	defer unsub()

	base := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)
	m.tick(base)
	m.tick(base.Add(30 * time.Second))
	m.tick(base.Add(61 * time.Second)) // 1s of jitter, well below threshold

	select {
	case ev := <-ch:
		t.Fatalf("unexpected resume event: %+v", ev)
	default:
	}
}

func TestTickDetectsSuspendGap(t *testing.T) {
	t.Parallel()
	m := NewMonitor(30*time.Second, 2*time.Minute, logx.Nop())
	ch, unsub := m.Subscribe(1)
	defer unsub()

	base := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)
	m.tick(base)
	// Host slept for an hour between ticks.
	resumeAt := base.Add(time.Hour)
	m.tick(resumeAt)

	select {
	case ev := <-ch:
		wantGap := time.Hour - 30*time.Second
		if ev.Gap != wantGap {
			t.Fatalf("Gap = %v, want %v", ev.Gap, wantGap)
		}
		if !ev.At.Equal(resumeAt) {
			t.Fatalf("At = %v, want %v", ev.At, resumeAt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a resume event")
	}
}

func TestFirstTickIsNeverAGap(t *testing.T) {
	t.Parallel()
	m := NewMonitor(30*time.Second, 2*time.Minute, logx.Nop())
	ch, unsub := m.Subscribe(1)
	defer unsub()

	// No prior tick; a lone observation carries no gap information.
	m.tick(time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event from first tick: %+v", ev)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	m := NewMonitor(0, 0, logx.Nop())
	ch, unsub := m.Subscribe(1)
	unsub()
	unsub() // safe twice

	if _, open := <-ch; open {
		t.Fatal("channel must be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic or block.
	base := time.Now()
	m.tick(base)
	m.tick(base.Add(time.Hour))
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	t.Parallel()
	m := NewMonitor(30*time.Second, 2*time.Minute, logx.Nop())
	ch, unsub := m.Subscribe(1)
	defer unsub()

	base := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)
	m.tick(base)
	m.tick(base.Add(time.Hour))     // fills the buffer
	m.tick(base.Add(2 * time.Hour)) // dropped, must not block

	<-ch
	select {
	case ev := <-ch:
		t.Fatalf("second event should have been dropped: %+v", ev)
	default:
	}
}
