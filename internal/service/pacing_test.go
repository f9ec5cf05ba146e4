package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifuryst/outreach/internal/config"
	"github.com/ifuryst/outreach/internal/models"
)

func TestPacingPolicy_Delay(t *testing.T) {
	p := NewPacingPolicy(config.PacingConfig{Default: "5s", Reddit: "10s", Twitter: "15s"}, nil)

	tests := []struct {
		platform models.Platform
		failures int
		want     time.Duration
	}{
		{models.PlatformReddit, 0, 10 * time.Second},
		{models.PlatformReddit, 1, 20 * time.Second},
		{models.PlatformReddit, 2, 40 * time.Second},
		{models.PlatformReddit, 3, 80 * time.Second},
		{models.PlatformReddit, 10, 80 * time.Second},
		{models.PlatformTwitter, 0, 15 * time.Second},
		{models.Platform("mastodon"), 1, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.platform, tt.failures), "%s after %d failures", tt.platform, tt.failures)
	}
}

func TestPacingPolicy_DefaultsOnBadConfig(t *testing.T) {
	p := NewPacingPolicy(config.PacingConfig{Reddit: "often"}, nil)
	assert.Equal(t, 10*time.Second, p.Delay(models.PlatformReddit, 0))
	assert.Equal(t, 15*time.Second, p.Delay(models.PlatformTwitter, 0))
}

func TestPacingPolicy_WaitUsesSleeper(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := NewPacingPolicy(config.PacingConfig{Reddit: "2s"}, sleeper)

	require.NoError(t, p.Wait(context.Background(), models.PlatformReddit, 1))
	assert.Equal(t, []time.Duration{4 * time.Second}, sleeper.recorded())
}

func TestTimerSleeper_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := TimerSleeper.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTimerSleeper_Elapses(t *testing.T) {
	assert.NoError(t, TimerSleeper.Sleep(context.Background(), time.Millisecond))
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, SystemClock.Now().Location())
}
