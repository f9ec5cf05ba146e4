package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StatsRollup is the part of MonitoringService the updater drives.
type StatsRollup interface {
	UpdatePlatformStats(now time.Time) error
	CleanupOldData(daysToKeep int) error
}

// StatsUpdater refreshes today's per-platform rollup on an interval and
// prunes samples older than the retention window.
type StatsUpdater struct {
	rollup        StatsRollup
	logger        *zap.Logger
	interval      time.Duration
	retentionDays int
	clock         Clock

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewStatsUpdater(rollup StatsRollup, logger *zap.Logger, interval time.Duration, retentionDays int) *StatsUpdater {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &StatsUpdater{
		rollup:        rollup,
		logger:        logger,
		interval:      interval,
		retentionDays: retentionDays,
		clock:         SystemClock,
		stopCh:        make(chan struct{}),
	}
}

// Start refreshes once right away, then on every interval until Stop or
// ctx cancellation.
func (s *StatsUpdater) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("Starting stats updater", zap.Duration("interval", s.interval))

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.refresh()
		for {
			select {
			case <-ticker.C:
				s.refresh()
			case <-s.stopCh:
				s.logger.Info("Stats updater stopped")
				return
			case <-ctx.Done():
				s.logger.Info("Stats updater stopped due to context cancellation")
				return
			}
		}
	}()
}

func (s *StatsUpdater) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *StatsUpdater) refresh() {
	if err := s.rollup.UpdatePlatformStats(s.clock.Now()); err != nil {
		s.logger.Error("Failed to update platform stats", zap.Error(err))
	}

	if s.retentionDays > 0 {
		if err := s.rollup.CleanupOldData(s.retentionDays); err != nil {
			s.logger.Error("Failed to cleanup old data", zap.Error(err))
		}
	}

	s.logger.Debug("Statistics refreshed")
}
