// Package wake detects host suspend/resume.
//
// A background loop ticks at a fixed interval and compares the wall-clock
// gap between consecutive ticks against the cadence. When the gap exceeds
// the configured threshold the host was almost certainly suspended (or the
// process was frozen); subscribers get a resume event so they can re-validate
// any wall-clock countdowns they own.
package wake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"wakebell/pkg/logx"
)

// Event is a single observed resume.
type Event struct {
	At  time.Time     // when the resume was observed
	Gap time.Duration // wall-clock time missing between ticks
}

const (
	DefaultInterval     = 30 * time.Second
	DefaultGapThreshold = 2 * time.Minute
)

type Monitor struct {
	// Now reads the current instant. Replaceable for tests.
	Now func() time.Time

	interval  time.Duration
	threshold time.Duration
	log       logx.Logger

	mu   sync.Mutex
	subs map[uint64]chan Event
	seq  atomic.Uint64

	last time.Time
}

func NewMonitor(interval, threshold time.Duration, log logx.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if threshold <= 0 {
		threshold = DefaultGapThreshold
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{
		Now:       time.Now,
		interval:  interval,
		threshold: threshold,
		log:       log,
		subs:      map[uint64]chan Event{},
	}
}

// Run blocks until ctx is done. Tickers ride the monotonic clock, so after a
// suspend the next tick arrives promptly and carries the full wall-clock gap.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	m.mu.Lock()
	m.last = m.Now()
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.tick(m.Now())
		}
	}
}

// tick advances the gap detector to now, publishing a resume event when the
// observed gap exceeds the threshold.
func (m *Monitor) tick(now time.Time) {
	m.mu.Lock()
	last := m.last
	m.last = now
	m.mu.Unlock()

	if last.IsZero() {
		return
	}
	gap := now.Sub(last) - m.interval
	if gap < m.threshold {
		return
	}
	m.log.Info("wall-clock gap detected", logx.Duration("gap", gap))
	m.publish(Event{At: now, Gap: gap})
}

// Subscribe registers a resume listener. The returned func removes the
// subscription and closes the channel; publishing never blocks, so a slow
// subscriber drops events rather than stalling the monitor.
func (m *Monitor) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 4
	}
	ch := make(chan Event, buffer)
	id := m.seq.Add(1)

	m.mu.Lock()
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

func (m *Monitor) publish(ev Event) {
	m.mu.Lock()
	chs := make([]chan Event, 0, len(m.subs))
	for _, ch := range m.subs {
		chs = append(chs, ch)
	}
	m.mu.Unlock()

	for _, ch := range chs {
		// A subscriber may unsubscribe concurrently and close its channel.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- ev:
			default:
			}
		}()
	}
}
