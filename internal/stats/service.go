// Package stats wraps the ring store with retention maintenance and summary
// queries.
package stats

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"wakebell/internal/storage"
	"wakebell/pkg/logx"
)

const DefaultRetention = 90 * 24 * time.Hour

type Config struct {
	Retention time.Duration
	// PruneSpec is a robfig/cron spec or descriptor. Default "@daily".
	PruneSpec string
}

type Service struct {
	log   logx.Logger
	store storage.Store
	cfg   Config

	c *cron.Cron
}

// New builds the stats service. store may be nil (storage disabled); the
// service then records nothing and reports empty summaries.
func New(store storage.Store, cfg Config, log logx.Logger) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.PruneSpec == "" {
		cfg.PruneSpec = "@daily"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, store: store, cfg: cfg}
}

// Start registers and starts the maintenance schedule. No-op without a
// store.
func (s *Service) Start() error {
	if s.store == nil || s.c != nil {
		return nil
	}
	s.c = cron.New()
	if _, err := s.c.AddFunc(s.cfg.PruneSpec, s.pruneOnce); err != nil {
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Debug("retention schedule started", logx.String("spec", s.cfg.PruneSpec), logx.Duration("retention", s.cfg.Retention))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	if s.c == nil {
		return
	}
	done := s.c.Stop().Done()
	s.c = nil
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Record persists a closed ring session. Errors are logged, not returned:
// a failed write must never interfere with dismissing an alarm.
func (s *Service) Record(ctx context.Context, e storage.RingEntry) {
	if s.store == nil {
		return
	}
	if err := s.store.AppendRing(ctx, e); err != nil {
		s.log.Warn("ring record failed", logx.Err(err))
		return
	}
	s.log.Debug("ring recorded", logx.String("outcome", e.Outcome), logx.Duration("rang", e.Duration))
}

// Summary aggregates ring sessions fired at or after since.
func (s *Service) Summary(ctx context.Context, since time.Time) (storage.Summary, error) {
	if s.store == nil {
		return storage.Summary{}, nil
	}
	entries, err := s.store.ListRings(ctx, since, 0)
	if err != nil {
		return storage.Summary{}, err
	}
	var sum storage.Summary
	var total time.Duration
	for _, e := range entries {
		sum.Total++
		total += e.Duration
		switch e.Outcome {
		case storage.OutcomeDismissed:
			sum.Dismissed++
		case storage.OutcomeTimeout:
			sum.TimedOut++
		}
	}
	if sum.Total > 0 {
		sum.AvgRing = total / time.Duration(sum.Total)
	}
	return sum, nil
}

func (s *Service) pruneOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cutoff := time.Now().Add(-s.cfg.Retention)
	n, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		s.log.Warn("ring prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("ring history pruned", logx.Int("removed", n), logx.Time("cutoff", cutoff))
	}
}
