// Package app assembles wakebell: config, logging, the alarm engine, wake
// detection, ring sessions with dismissal missions, persistence and bells.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"wakebell/internal/config"
	"wakebell/internal/eventbus"
	"wakebell/internal/notify"
	"wakebell/internal/services/alarm"
	"wakebell/internal/stats"
	"wakebell/internal/storage"
	"wakebell/internal/wake"
	"wakebell/pkg/logx"
	"wakebell/pkg/mission"
)

const (
	defaultRingTimeout = 10 * time.Minute
	statsWindow        = 30 * 24 * time.Hour
)

type App struct {
	log  logx.Logger
	logs *logx.Service

	cfgMgr  *config.Manager
	bus     eventbus.Bus
	monitor *wake.Monitor
	engine  *alarm.Service
	store   storage.Store
	stats   *stats.Service
	bells   *notify.Service
	tg      *notify.TelegramBell

	ringMu      sync.Mutex
	ring        *ringSession
	ringSeq     uint64
	ringTimeout time.Duration
	mathMission bool
	rng         *rand.Rand

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ringSession is one open firing: the alarm rang and has not been dismissed
// yet.
type ringSession struct {
	id        uint64
	firedAt   time.Time
	challenge mission.Challenge
	attempts  int
	timer     *time.Timer
}

// New loads and validates the config at path and builds every component.
// Nothing runs until Start.
func New(path string) (*App, error) {
	mgr := config.NewManager(path)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logs, root := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	mgr.SetLogger(root.With(logx.String("svc", "config")))
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		return c.Validate()
	})

	a := &App{
		log:    root.With(logx.String("svc", "app")),
		logs:   logs,
		cfgMgr: mgr,
		bus:    eventbus.New(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	wakeInterval, _ := config.ParseDurationOrDefault("wake.interval", cfg.Wake.Interval, wake.DefaultInterval)
	wakeThreshold, _ := config.ParseDurationOrDefault("wake.gap_threshold", cfg.Wake.GapThreshold, wake.DefaultGapThreshold)
	a.monitor = wake.NewMonitor(wakeInterval, wakeThreshold, root.With(logx.String("svc", "wake")))

	a.engine = alarm.New(root.With(logx.String("svc", "alarm")), a.monitor)

	a.applyRingConfig(cfg)

	if cfg.Storage != nil {
		busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		a.store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, root.With(logx.String("svc", "storage")))
		if err != nil {
			logs.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	retention, _ := config.ParseDurationField("stats.retention", cfg.Stats.Retention)
	a.stats = stats.New(a.store, stats.Config{
		Retention: retention,
		PruneSpec: cfg.Stats.PruneSpec,
	}, root.With(logx.String("svc", "stats")))

	ratePerSec := 0
	if cfg.Telegram != nil {
		ratePerSec = cfg.Telegram.RatePerSec
	}
	a.bells = notify.NewService(notify.Config{RatePerSec: ratePerSec}, root.With(logx.String("svc", "notify")))
	a.bells.AddBell(notify.LogBell{Log: root.With(logx.String("svc", "bell"))})

	if cfg.Telegram != nil {
		pollTimeout, _ := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
		a.tg, err = notify.NewTelegramBell(notify.TelegramConfig{
			Token:       cfg.Telegram.Token,
			ChatID:      cfg.Telegram.ChatID,
			PollTimeout: pollTimeout,
		}, notify.Handlers{
			Dismiss:  a.Dismiss,
			Schedule: a.ScheduleText,
			Stats:    a.StatsText,
		}, root.With(logx.String("svc", "telegram")))
		if err != nil {
			if a.store != nil {
				_ = a.store.Close()
			}
			logs.Close()
			return nil, fmt.Errorf("telegram bell: %w", err)
		}
		a.bells.AddBell(a.tg)
	}

	return a, nil
}

// Start brings the daemon up: wake monitoring, bells, retention maintenance,
// the alarm engine and config hot reload.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.monitor.Run(ctx)
	}()

	a.bells.Start(ctx)
	if a.tg != nil {
		a.tg.Start()
	}
	if err := a.stats.Start(); err != nil {
		return fmt.Errorf("stats schedule: %w", err)
	}

	cfg := a.cfgMgr.Get()
	a.engine.Init(alarmConfigFrom(cfg.Alarm), alarm.Callbacks{
		OnAlarm: a.openRing,
		OnNextAlarm: func(at time.Time, ok bool) {
			a.bus.Publish(eventbus.Event{Type: eventbus.AlarmNext, Data: at})
			if ok {
				a.log.Info("next alarm", logx.Time("at", at))
			} else {
				a.log.Info("no alarm scheduled")
			}
		},
		OnWake: func(gap time.Duration) {
			a.bus.Publish(eventbus.Event{Type: eventbus.WakeResumed, Data: gap})
		},
	})

	reloads := a.cfgMgr.Subscribe(2)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("config watch ended", logx.Err(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		defer a.cfgMgr.Unsubscribe(reloads)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-reloads:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.log.Info("wakebell started")
	return nil
}

// Stop tears the daemon down in reverse order. An open ring session is
// closed as timed out so it still lands in the history.
func (a *App) Stop(ctx context.Context) {
	a.engine.Destroy()
	a.closeRing(0, storage.OutcomeTimeout)

	if a.tg != nil {
		a.tg.Stop()
	}
	a.bells.Stop()
	a.stats.Stop(ctx)

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("wakebell stopped")
	_ = a.logs.Close()
}

// ---- ring sessions ----

// openRing is the engine's OnAlarm callback. A ring still open from an
// earlier firing is closed as timed out first, so at most one is ever open.
func (a *App) openRing() {
	a.ringMu.Lock()
	if a.ring != nil {
		a.closeRingLocked(a.ring.id, storage.OutcomeTimeout)
	}

	a.ringSeq++
	r := &ringSession{
		id:        a.ringSeq,
		firedAt:   time.Now(),
		challenge: mission.None(),
	}
	if a.mathMission {
		r.challenge = mission.Generate(a.rng)
	}
	id := r.id
	r.timer = time.AfterFunc(a.ringTimeout, func() {
		a.closeRing(id, storage.OutcomeTimeout)
	})
	a.ring = r
	text := a.ringText(r)
	a.ringMu.Unlock()

	a.bus.Publish(eventbus.Event{Type: eventbus.AlarmFired, Time: r.firedAt})
	a.bus.Publish(eventbus.Event{Type: eventbus.RingOpened, Data: r.firedAt})
	a.bells.Announce(text)
}

func (a *App) ringText(r *ringSession) string {
	var b strings.Builder
	b.WriteString("⏰ Wake up!")
	if q := r.challenge.Question(); q != "" {
		b.WriteString("\nSolve to dismiss: ")
		b.WriteString(q)
		b.WriteString("\nReply: /dismiss <answer>")
	} else {
		b.WriteString("\nReply /dismiss to stop.")
	}
	return b.String()
}

// Dismiss attempts to close the open ring session with the given mission
// answer and returns the user-facing reply.
func (a *App) Dismiss(answer string) string {
	a.ringMu.Lock()
	r := a.ring
	if r == nil {
		a.ringMu.Unlock()
		return "No alarm is ringing."
	}
	r.attempts++
	if !r.challenge.Check(answer) {
		attempts := r.attempts
		q := r.challenge.Question()
		a.ringMu.Unlock()
		a.log.Debug("wrong mission answer", logx.Int("attempts", attempts))
		return "Wrong answer. " + q
	}
	a.closeRingLocked(r.id, storage.OutcomeDismissed)
	a.ringMu.Unlock()

	if at, ok := a.engine.NextAlarmTime(); ok {
		return "Alarm dismissed. Next alarm: " + at.Format("Mon 2 Jan 15:04")
	}
	return "Alarm dismissed."
}

// closeRing closes the ring with the given id if it is still the open one.
// id 0 closes whatever is open.
func (a *App) closeRing(id uint64, outcome string) {
	a.ringMu.Lock()
	defer a.ringMu.Unlock()
	if a.ring == nil || (id != 0 && a.ring.id != id) {
		return
	}
	a.closeRingLocked(a.ring.id, outcome)
}

func (a *App) closeRingLocked(id uint64, outcome string) {
	r := a.ring
	if r == nil || r.id != id {
		return
	}
	a.ring = nil
	if r.timer != nil {
		r.timer.Stop()
	}

	now := time.Now()
	e := storage.RingEntry{
		FiredAt:  r.firedAt,
		Duration: now.Sub(r.firedAt),
		Outcome:  outcome,
		Mission:  r.challenge.Question(),
		Attempts: r.attempts,
	}
	if outcome == storage.OutcomeDismissed {
		e.DismissedAt = now
	}

	// Off the ring mutex path: recording and fanout must not hold up a
	// dismissal reply.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.stats.Record(ctx, e)
		a.bus.Publish(eventbus.Event{Type: eventbus.RingClosed, Data: e})
		if outcome == storage.OutcomeTimeout {
			a.bells.Announce("Alarm timed out after " + e.Duration.Round(time.Second).String() + ".")
		}
	}()

	a.log.Info("ring closed", logx.String("outcome", outcome),
		logx.Duration("rang", e.Duration), logx.Int("attempts", r.attempts))
}

// ---- command text ----

// ScheduleText renders the upcoming alarm calendar for /schedule.
func (a *App) ScheduleText() string {
	cfg, ok := a.engine.Config()
	if !ok || !cfg.Enabled {
		return "Alarm is disabled."
	}
	var b strings.Builder
	if at, ok := a.engine.NextAlarmTime(); ok {
		fmt.Fprintf(&b, "Next alarm: %s\n", at.Format("Mon 2 Jan 15:04"))
	}
	b.WriteString("Upcoming alarm days:")
	for _, d := range a.engine.UpcomingWorkDays(time.Now(), 7) {
		fmt.Fprintf(&b, "\n  %s at %02d:%02d", d.Format("Mon 2 Jan"), cfg.Hour, cfg.Minute)
	}
	return b.String()
}

// StatsText renders the recent ring history for /stats.
func (a *App) StatsText() string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum, err := a.stats.Summary(ctx, time.Now().Add(-statsWindow))
	if err != nil {
		a.log.Warn("stats summary failed", logx.Err(err))
		return "Stats are unavailable right now."
	}
	if sum.Total == 0 {
		return "No rings recorded in the last 30 days."
	}
	return fmt.Sprintf("Last 30 days: %d rings, %d dismissed, %d timed out, avg ring %s.",
		sum.Total, sum.Dismissed, sum.TimedOut, sum.AvgRing.Round(time.Second))
}

// ---- hot reload ----

// applyConfig pushes a reloaded config into the running components. Storage
// and Telegram changes need a restart; everything else applies live.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	a.applyRingConfig(cfg)
	a.engine.Apply(alarmPatchFrom(cfg.Alarm))
	a.log.Info("config reloaded")
}

func (a *App) applyRingConfig(cfg *config.Config) {
	timeout, _ := config.ParseDurationOrDefault("ring.timeout", cfg.Ring.Timeout, defaultRingTimeout)
	a.ringMu.Lock()
	a.ringTimeout = timeout
	a.mathMission = strings.TrimSpace(cfg.Ring.Mission) != "none"
	a.ringMu.Unlock()
}

// ---- config mapping ----

func alarmConfigFrom(c config.AlarmConfig) alarm.Config {
	rec := alarm.Daily
	if strings.TrimSpace(c.Recurrence) == string(alarm.EveryOtherDay) {
		rec = alarm.EveryOtherDay
	}
	start, _ := config.ParseDateField("alarm.start_date", c.StartDate)
	return alarm.Config{
		Enabled:    c.Enabled,
		Hour:       c.Hour,
		Minute:     c.Minute,
		Recurrence: rec,
		StartDate:  start,
	}
}

// alarmPatchFrom builds a full patch: a reloaded file is a complete
// description, so every field is set.
func alarmPatchFrom(c config.AlarmConfig) alarm.Patch {
	cfg := alarmConfigFrom(c)
	return alarm.Patch{
		Enabled:    &cfg.Enabled,
		Hour:       &cfg.Hour,
		Minute:     &cfg.Minute,
		Recurrence: &cfg.Recurrence,
		StartDate:  &cfg.StartDate,
	}
}
