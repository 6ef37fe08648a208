package alarm

import (
	"sync"
	"time"

	"wakebell/internal/wake"
	"wakebell/pkg/logx"
)

// WakeSource delivers host resume notifications. Subscribe returns a
// receive channel and a removal func; removal closes the channel.
type WakeSource interface {
	Subscribe(buffer int) (<-chan wake.Event, func())
}

type timerHandle interface {
	Stop() bool
}

// Service is the alarm scheduling engine. It owns at most one armed
// countdown timer and at most one wake subscription at a time; both are
// cancelled before being replaced and on teardown.
//
// All public methods are safe to call in any state, including before Init,
// after Stop and after Destroy.
type Service struct {
	mu  sync.Mutex
	log logx.Logger

	// Now reads the current instant. Replaceable before Init so the
	// arithmetic stays testable against a fixed reference.
	Now func() time.Time

	schedule func(d time.Duration, fn func()) timerHandle
	wakes    WakeSource

	cfg *Config
	cbs Callbacks

	next     time.Time // zero = no alarm pending
	timer    timerHandle
	timerVer uint64 // bumped on every cancel; stale fires check and bail

	wakeStop  func()
	destroyed bool
}

func New(log logx.Logger, wakes WakeSource) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:   log,
		wakes: wakes,
		schedule: func(d time.Duration, fn func()) timerHandle {
			return time.AfterFunc(d, fn)
		},
	}
}

// Init installs the config and callbacks, immediately computes and reports
// the next alarm time, arms a countdown if one is due and subscribes to wake
// notifications. Calling Init again re-initializes from scratch: the
// previous timer and wake subscription are torn down first.
func (s *Service) Init(cfg Config, cbs Callbacks) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.removeWakeLocked()
	s.cfg = &cfg
	s.cbs = cbs
	report := s.rearmLocked(s.now())
	s.installWakeLocked()
	s.mu.Unlock()

	report()
}

// Apply shallow-merges the patch into the stored config, then performs the
// same recompute-report-rearm sequence as after a firing. A patch that
// disables the alarm cancels the armed timer and reports absent.
//
// Apply before Init is a no-op: there is no config to merge into.
func (s *Service) Apply(p Patch) {
	s.mu.Lock()
	if s.destroyed || s.cfg == nil {
		s.mu.Unlock()
		return
	}
	merged := p.merge(*s.cfg)
	s.cfg = &merged
	report := s.rearmLocked(s.now())
	s.mu.Unlock()

	report()
}

// Stop cancels the armed timer, clears the next alarm time and reports
// absent. The stored config is kept so the alarm can be resumed via Apply.
// Repeat calls are safe.
func (s *Service) Stop() {
	s.mu.Lock()
	s.cancelTimerLocked()
	s.next = time.Time{}
	cb := s.cbs.OnNextAlarm
	s.mu.Unlock()

	if cb != nil {
		s.invoke("next", func() { cb(time.Time{}, false) })
	}
}

// Destroy performs Stop and removes the wake subscription. The instance is
// not reusable afterwards. Safe on a never-initialized instance and safe to
// call more than once.
func (s *Service) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.cancelTimerLocked()
	s.next = time.Time{}
	stop := s.wakeStop
	s.wakeStop = nil
	cb := s.cbs.OnNextAlarm
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if cb != nil {
		s.invoke("next", func() { cb(time.Time{}, false) })
	}
}

// NextAlarmTime returns the computed instant of the next firing.
// ok=false means no alarm is pending.
func (s *Service) NextAlarmTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, !s.next.IsZero()
}

// NextFrom computes the next qualifying alarm instant strictly after ref
// using the current config, without touching the armed timer.
func (s *Service) NextFrom(ref time.Time) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextFrom(s.cfg, ref)
}

// IsWorkDay reports whether the recurrence rule permits firing on the given
// date. Before Init it is permissive and returns true.
func (s *Service) IsWorkDay(date time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return workDay(s.cfg, date)
}

// UpcomingWorkDays lists the next n work days starting from the given
// instant's date (inclusive). Used by calendar previews.
func (s *Service) UpcomingWorkDays(from time.Time, n int) []time.Time {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	days := make([]time.Time, 0, n)
	day := dateOnly(from)
	for i := 0; i < maxScanDays && len(days) < n; i++ {
		if workDay(cfg, day) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// Config returns a snapshot of the stored config. ok=false before Init.
func (s *Service) Config() (Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return Config{}, false
	}
	return *s.cfg, true
}

// ---- internals ----

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// rearmLocked recomputes the next alarm from ref, swaps the armed timer and
// returns a func that reports the result to the observer callback. Call with
// s.mu held; invoke the returned func after unlocking.
func (s *Service) rearmLocked(ref time.Time) func() {
	s.cancelTimerLocked()

	next, ok := nextFrom(s.cfg, ref)
	if ok {
		s.next = next
		d := next.Sub(ref)
		if d < 0 {
			// Clock skew or a recomputation race; fire without delay
			// rather than registering a negative wait.
			d = 0
		}
		ver := s.timerVer
		s.timer = s.schedule(d, func() { s.fire(ver) })
		s.log.Debug("alarm armed", logx.Time("at", next), logx.Duration("in", d))
	} else {
		s.next = time.Time{}
		s.log.Debug("no alarm scheduled")
	}

	cb := s.cbs.OnNextAlarm
	return func() {
		if cb != nil {
			s.invoke("next", func() { cb(next, ok) })
		}
	}
}

// cancelTimerLocked enforces the at-most-one-live-timer invariant. Bumping
// the version neutralizes a fire that already left the timer runtime but has
// not taken the mutex yet.
func (s *Service) cancelTimerLocked() {
	s.timerVer++
	if s.timer != nil {
		_ = s.timer.Stop()
		s.timer = nil
	}
}

func (s *Service) fire(ver uint64) {
	s.mu.Lock()
	if s.destroyed || ver != s.timerVer {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	onAlarm := s.cbs.OnAlarm
	report := s.rearmLocked(s.now())
	s.mu.Unlock()

	s.log.Info("alarm fired")
	if onAlarm != nil {
		s.invoke("alarm", onAlarm)
	}
	report()
}

func (s *Service) installWakeLocked() {
	if s.wakes == nil {
		return
	}
	ch, stop := s.wakes.Subscribe(4)
	s.wakeStop = stop
	go func() {
		for ev := range ch {
			s.handleWake(ev)
		}
	}()
}

func (s *Service) removeWakeLocked() {
	if s.wakeStop != nil {
		s.wakeStop()
		s.wakeStop = nil
	}
}

// handleWake re-validates the armed countdown after a host resume: the
// countdown may have been suspended or drifted while the host was away, so
// the next alarm is recomputed against the current instant.
func (s *Service) handleWake(ev wake.Event) {
	s.mu.Lock()
	if s.destroyed || s.cfg == nil {
		s.mu.Unlock()
		return
	}
	onWake := s.cbs.OnWake
	var report func()
	if s.cfg.Enabled {
		report = s.rearmLocked(s.now())
	}
	s.mu.Unlock()

	s.log.Info("host resumed; re-validating countdown", logx.Duration("gap", ev.Gap))
	if onWake != nil {
		s.invoke("wake", func() { onWake(ev.Gap) })
	}
	if report != nil {
		report()
	}
}

// invoke shields the engine from panicking callbacks; a fault escaping a
// timer goroutine would take the whole process down.
func (s *Service) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in alarm callback", logx.String("callback", name), logx.Any("panic", r))
		}
	}()
	fn()
}
