// Package sweeper prunes old digests from the store on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Pruner deletes digests created before a cutoff. *store.DB satisfies it.
type Pruner interface {
	PruneCompactions(before time.Time) (int64, error)
}

// Sweeper runs PruneCompactions with a rolling keep window.
type Sweeper struct {
	pruner   Pruner
	schedule string
	keep     time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	cron *rcron.Cron
}

// New returns a sweeper that keeps keepDays of digests. schedule is a
// standard five-field cron spec or a descriptor such as "@daily".
func New(p Pruner, schedule string, keepDays int, logger *slog.Logger) (*Sweeper, error) {
	if keepDays <= 0 {
		return nil, fmt.Errorf("sweeper: keep_days must be positive, got %d", keepDays)
	}
	if _, err := rcron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("sweeper: schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{
		pruner:   p,
		schedule: schedule,
		keep:     time.Duration(keepDays) * 24 * time.Hour,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start registers the prune job and runs it until ctx is done or Stop is
// called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("sweeper: already started")
	}

	c := rcron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("sweeper: register: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("sweeper started", "schedule", s.schedule, "keep", s.keep)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// RunOnce prunes everything older than the keep window.
func (s *Sweeper) RunOnce() (int64, error) {
	cutoff := s.now().Add(-s.keep)
	n, err := s.pruner.PruneCompactions(cutoff)
	if err != nil {
		s.logger.Error("prune failed", "err", err)
		return 0, err
	}
	s.logger.Info("pruned compactions", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	return n, nil
}
