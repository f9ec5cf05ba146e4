package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ifuryst/outreach/internal/config"
	"github.com/ifuryst/outreach/internal/models"
)

// CycleRunner runs one execution cycle for a job.
type CycleRunner interface {
	Run(ctx context.Context, jobID uint) (*models.CycleRun, error)
}

type DueJobLister interface {
	ListDueJobs(ctx context.Context, now time.Time) ([]models.AutomationJob, error)
}

// Scheduler wakes up on a fixed interval and runs the cycle of every due
// job. Cycles of different jobs run concurrently up to the worker limit;
// a job that is still running is never dispatched again.
type Scheduler struct {
	config   *config.SchedulerConfig
	logger   *zap.Logger
	jobs     DueJobLister
	runner   CycleRunner
	clock    Clock
	slots    *semaphore.Weighted
	inFlight sync.Map

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewScheduler(cfg *config.SchedulerConfig, logger *zap.Logger, jobs DueJobLister, runner CycleRunner, clock Clock) *Scheduler {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{
		config: cfg,
		logger: logger,
		jobs:   jobs,
		runner: runner,
		clock:  clock,
		slots:  semaphore.NewWeighted(int64(workers)),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	interval, err := time.ParseDuration(s.config.TickInterval)
	if err != nil || interval <= 0 {
		s.logger.Error("Invalid tick interval", zap.String("interval", s.config.TickInterval), zap.Error(err))
		return fmt.Errorf("invalid tick interval %q", s.config.TickInterval)
	}

	s.logger.Info("Starting scheduler",
		zap.String("tick_interval", s.config.TickInterval),
		zap.Int("workers", s.config.Workers))

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.ticker = time.NewTicker(interval)

	// Run first tick immediately
	s.spawnTick(runCtx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ticker.C:
				s.spawnTick(runCtx)
			case <-s.stopCh:
				s.logger.Info("Scheduler stopped")
				return
			case <-runCtx.Done():
				s.logger.Info("Scheduler context cancelled")
				return
			}
		}
	}()

	return nil
}

// spawnTick runs a tick without blocking the timer loop, so one long cycle
// does not hold back jobs that become due later.
func (s *Scheduler) spawnTick(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Tick(ctx); err != nil {
			s.logger.Error("Scheduler tick failed", zap.Error(err))
		}
	}()
}

// Stop cancels running cycles and waits for them to wind down.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
	s.logger.Info("Scheduler shutdown completed")
}

// Tick dispatches every due job that is not already running and waits for
// the dispatched cycles to finish.
func (s *Scheduler) Tick(ctx context.Context) error {
	began := time.Now()
	jobs, err := s.jobs.ListDueJobs(ctx, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to list due jobs: %w", err)
	}
	if len(jobs) == 0 {
		s.logger.Debug("No due jobs")
		return nil
	}

	var g errgroup.Group
	dispatched := 0
	for _, job := range jobs {
		id := job.ID
		if _, running := s.inFlight.LoadOrStore(id, struct{}{}); running {
			s.logger.Debug("Job still running, skipped", zap.Uint("job_id", id))
			continue
		}
		dispatched++

		g.Go(func() error {
			defer s.inFlight.Delete(id)
			if err := s.slots.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer s.slots.Release(1)
			s.runJob(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Scheduler tick completed",
		zap.Int("due", len(jobs)),
		zap.Int("dispatched", dispatched),
		zap.Duration("duration", time.Since(began)))
	return nil
}

// runJob isolates one cycle: errors and panics are logged, never returned.
func (s *Scheduler) runJob(ctx context.Context, jobID uint) {
	logger := s.logger.With(zap.Uint("job_id", jobID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Cycle panicked",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	run, err := s.runner.Run(ctx, jobID)
	var fatal *JobFatalError
	switch {
	case errors.As(err, &fatal):
		logger.Warn("Job moved to error state", zap.String("reason", fatal.Reason))
	case err != nil:
		logger.Error("Cycle failed", zap.Error(err))
	case run == nil:
		logger.Debug("Job no longer active, cycle skipped")
	}
}
