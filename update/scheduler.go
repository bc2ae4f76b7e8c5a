package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultCheckSchedule is the background check cadence used when no
// schedule is configured.
const DefaultCheckSchedule = "@every 30m"

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Run is invoked on each tick. Typically a quiet orchestrator run.
	Run func(ctx context.Context)

	// Schedule is a cron expression or @every duration
	// (default DefaultCheckSchedule).
	Schedule string

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Scheduler runs the background update check on a cron schedule. Ticks that
// arrive while a previous run is still in flight are skipped.
type Scheduler struct {
	run      func(ctx context.Context)
	schedule string
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates a Scheduler. cfg.Run must be set; the schedule is
// validated eagerly.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Run == nil {
		return nil, errors.New("update: scheduler run func is required")
	}
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultCheckSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("update: invalid check schedule %q: %w", schedule, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		run:      cfg.Run,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// Start begins ticking. It returns immediately; runs happen on the cron
// goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("update: scheduler already started")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.tick(ctx) }); err != nil {
		s.cancel()
		return fmt.Errorf("update: register check schedule: %w", err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("background update check scheduled", "schedule", s.schedule)
	return nil
}

// Stop halts ticking and waits for a tick in progress to observe
// cancellation.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("previous update check still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if ctx.Err() != nil {
		return
	}
	s.run(ctx)
}
