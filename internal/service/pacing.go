package service

import (
	"context"
	"time"

	"github.com/ifuryst/outreach/internal/config"
	"github.com/ifuryst/outreach/internal/models"
)

type Clock interface {
	Now() time.Time
}

type Sleeper interface {
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock reports wall-clock time in UTC.
var SystemClock Clock = systemClock{}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var TimerSleeper Sleeper = timerSleeper{}

// maxBackoffShift caps the backoff at 8x the base delay.
const maxBackoffShift = 3

// PacingPolicy spaces out consecutive sends on a platform. After failed
// sends the delay doubles, up to 8x the base.
type PacingPolicy struct {
	delays  map[models.Platform]time.Duration
	base    time.Duration
	sleeper Sleeper
}

func NewPacingPolicy(cfg config.PacingConfig, sleeper Sleeper) *PacingPolicy {
	if sleeper == nil {
		sleeper = TimerSleeper
	}
	return &PacingPolicy{
		delays: map[models.Platform]time.Duration{
			models.PlatformReddit:  config.Duration(cfg.Reddit, 10*time.Second),
			models.PlatformTwitter: config.Duration(cfg.Twitter, 15*time.Second),
		},
		base:    config.Duration(cfg.Default, 10*time.Second),
		sleeper: sleeper,
	}
}

// Delay is the pause before the next send given the number of consecutive
// failed sends that preceded it.
func (p *PacingPolicy) Delay(platform models.Platform, consecutiveFailures int) time.Duration {
	d, ok := p.delays[platform]
	if !ok {
		d = p.base
	}
	shift := consecutiveFailures
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	if shift > 0 {
		d <<= uint(shift)
	}
	return d
}

func (p *PacingPolicy) Wait(ctx context.Context, platform models.Platform, consecutiveFailures int) error {
	return p.sleeper.Sleep(ctx, p.Delay(platform, consecutiveFailures))
}
