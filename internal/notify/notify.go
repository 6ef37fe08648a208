// Package notify delivers wakebell's outbound messages ("bells"): the
// wake-up announcement with its dismissal mission, dismissal confirmations
// and schedule updates.
//
// Deliveries run on a single worker behind a bounded queue, throttled by a
// shared rate limiter and retried a bounded number of times. A broken bell
// (e.g. Telegram offline) must never block the alarm cycle.
package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"wakebell/pkg/logx"
)

// Bell is a single delivery target.
type Bell interface {
	Name() string
	Send(ctx context.Context, text string) error
}

type Config struct {
	RatePerSec int // default 1
	RetryMax   int // default 2
	RetryBase  time.Duration
	QueueSize  int
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 2
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 32
	}
	return c
}

type Service struct {
	log logx.Logger
	cfg Config

	limiter *rate.Limiter

	mu    sync.Mutex
	bells []Bell

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(cfg Config, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		queue:   make(chan string, cfg.QueueSize),
	}
}

func (s *Service) AddBell(b Bell) {
	s.mu.Lock()
	s.bells = append(s.bells, b)
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
}

func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.wg.Wait()
}

// Announce enqueues a message for every bell. Non-blocking: when the queue
// is full the message is dropped with a warning rather than stalling the
// alarm cycle.
func (s *Service) Announce(text string) {
	select {
	case s.queue <- text:
	default:
		s.log.Warn("bell queue full; dropping message")
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-s.queue:
			s.deliver(ctx, text)
		}
	}
}

func (s *Service) deliver(ctx context.Context, text string) {
	s.mu.Lock()
	bells := make([]Bell, len(s.bells))
	copy(bells, s.bells)
	s.mu.Unlock()

	for _, b := range bells {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		var err error
		for attempt := 0; attempt <= s.cfg.RetryMax; attempt++ {
			if attempt > 0 {
				delay := s.cfg.RetryBase << (attempt - 1)
				t := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = b.Send(sctx, text)
			cancel()
			if err == nil {
				break
			}
		}
		if err != nil {
			s.log.Warn("bell delivery failed", logx.String("bell", b.Name()), logx.Err(err))
		}
	}
}

// LogBell rings through the logger. Always installed, so a bare config
// still produces a visible alarm.
type LogBell struct {
	Log logx.Logger
}

func (l LogBell) Name() string { return "log" }

func (l LogBell) Send(ctx context.Context, text string) error {
	_ = ctx
	l.Log.Warn(text)
	return nil
}
