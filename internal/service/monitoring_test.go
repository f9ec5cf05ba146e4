package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/models"
)

func TestMonitoring_RecordError(t *testing.T) {
	db := newTestDB(t)
	ms := NewMonitoringService(db, zap.NewNop())

	require.NoError(t, ms.RecordError("ERROR", "executor", "Job failed", "campaign missing",
		WithPlatform(models.PlatformReddit), WithJob(3), WithContext(map[string]interface{}{"run_id": "r1"})))
	require.NoError(t, ms.RecordError("WARN", "notify", "Telegram down", "timeout"))

	logs, err := ms.GetRecentErrors(10)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	byTitle := map[string]models.ErrorLog{}
	for _, l := range logs {
		byTitle[l.Title] = l
	}
	failed := byTitle["Job failed"]
	require.NotNil(t, failed.JobID)
	assert.EqualValues(t, 3, *failed.JobID)
	assert.Equal(t, models.PlatformReddit, failed.Platform)
	assert.JSONEq(t, `{"run_id":"r1"}`, failed.Context)
	assert.Equal(t, "{}", byTitle["Telegram down"].Context)
}

func TestMonitoring_UpdatePlatformStats(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ms := NewMonitoringService(db, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC()
	active := seedJob(t, store, storeJob(1, models.PlatformReddit))
	broken := seedJob(t, store, storeJob(2, models.PlatformReddit))
	_, err := store.MarkJobFatal(ctx, broken.ID, "boom")
	require.NoError(t, err)

	for _, st := range []models.OutreachStatus{models.OutreachSuccess, models.OutreachSuccess, models.OutreachFailed} {
		require.NoError(t, store.RecordAttempt(ctx, &models.OutreachEntry{
			JobID: active.ID, Platform: models.PlatformReddit, Candidate: "c-" + string(st),
			Status: st, CreatedAt: now, Metadata: "{}",
		}))
	}
	require.NoError(t, store.SaveRun(ctx, &models.CycleRun{
		RunID: "run-1", JobID: active.ID, Platform: models.PlatformReddit, Outcome: models.RunCompleted, StartedAt: now,
	}))

	require.NoError(t, ms.UpdatePlatformStats(now))

	stats, err := ms.GetPlatformStats(1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	s := stats[0]
	assert.Equal(t, models.PlatformReddit, s.Platform)
	assert.Equal(t, 1, s.ActiveJobs)
	assert.Equal(t, 1, s.ErrorJobs)
	assert.Equal(t, 2, s.Sent)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Runs)
	assert.NotNil(t, s.LastSentAt)
	assert.NotNil(t, s.LastFailedAt)

	// a second pass updates the same row
	require.NoError(t, store.RecordAttempt(ctx, &models.OutreachEntry{
		JobID: active.ID, Platform: models.PlatformReddit, Candidate: "late",
		Status: models.OutreachSuccess, CreatedAt: now, Metadata: "{}",
	}))
	require.NoError(t, ms.UpdatePlatformStats(now))

	stats, err = ms.GetPlatformStats(1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].Sent)
}

func TestMonitoring_CleanupOldData(t *testing.T) {
	db := newTestDB(t)
	ms := NewMonitoringService(db, zap.NewNop())

	old := time.Now().UTC().AddDate(0, 0, -60)
	require.NoError(t, db.Create(&models.MetricsSample{MetricName: "outreach_sent", MetricType: "counter", Value: 1, Tags: "{}", Timestamp: old}).Error)
	require.NoError(t, ms.RecordMetric("outreach_sent", "counter", 2, map[string]interface{}{"platform": "reddit"}))

	require.NoError(t, ms.CleanupOldData(30))

	var samples []models.MetricsSample
	require.NoError(t, db.Find(&samples).Error)
	require.Len(t, samples, 1)
	assert.Equal(t, 2.0, samples[0].Value)
	assert.JSONEq(t, `{"platform":"reddit"}`, samples[0].Tags)
}
