package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler rolls quota windows over on a cron schedule.
//
// The tracker already resets windows lazily before every check, but a
// process that sits idle across midnight would keep stale counters in its
// store until the next request arrives. The scheduler closes that gap by
// invoking Rollover at scheduled times.
type Scheduler struct {
	tracker *Tracker
	cron    *cron.Cron
	spec    string
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// DefaultRolloverSchedule runs the rollover one minute past midnight,
// covering both daily and first-of-month resets.
const DefaultRolloverSchedule = "1 0 * * *"

// NewScheduler creates a scheduler that rolls the tracker's windows over
// according to the cron expression spec. An empty spec uses
// DefaultRolloverSchedule.
func NewScheduler(tracker *Tracker, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultRolloverSchedule
	}
	return &Scheduler{
		tracker: tracker,
		cron:    cron.New(),
		spec:    spec,
		logger:  slog.Default().With("component", "quota.scheduler"),
	}
}

// Start begins the scheduled rollovers. The scheduler stops itself when
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate cron expression
	if _, err := cron.ParseStandard(s.spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.spec, err)
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		s.runRollover(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule quota rollover: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("quota rollover scheduler started",
		"schedule", s.spec,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runRollover executes a single rollover cycle.
func (s *Scheduler) runRollover(ctx context.Context) {
	if err := s.tracker.Rollover(ctx); err != nil {
		s.logger.Error("scheduled quota rollover failed",
			"error", err,
		)
		return
	}
	s.logger.Debug("scheduled quota rollover completed")
}

// Stop stops the scheduler and waits for any running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		s.running = false
		s.logger.Info("quota rollover scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
