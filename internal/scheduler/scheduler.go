// Package scheduler runs periodic database maintenance.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// DefaultInterval is the maintenance period used when none is set.
const DefaultInterval = 6 * time.Hour

// Maintainer performs one round of store housekeeping.
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// Scheduler periodically runs store maintenance.
type Scheduler struct {
	store    Maintainer
	log      *slog.Logger
	interval time.Duration
}

// New creates a Scheduler with DefaultInterval.
func New(store Maintainer, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		log:      log.With("component", "scheduler"),
		interval: DefaultInterval,
	}
}

// SetInterval overrides the default maintenance interval.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.interval = d
}

// Run schedules the maintenance job and blocks until ctx is cancelled.
// A non-positive interval disables the job and Run just waits for ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info("maintenance disabled")
		<-ctx.Done()
		return nil
	}

	sched, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(s.log),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.maintain, ctx),
		gocron.WithName("db-maintenance"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule maintenance: %w", err)
	}

	sched.Start()
	s.log.Info("maintenance scheduled", "interval", s.interval)

	<-ctx.Done()

	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) maintain(ctx context.Context) {
	start := time.Now()
	if err := s.store.Maintain(ctx); err != nil {
		s.log.Error("maintenance", "error", err)
		return
	}
	s.log.Debug("maintenance done", "duration", time.Since(start))
}
