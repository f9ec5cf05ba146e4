package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ifuryst/outreach/internal/models"
)

// CycleStore is the persistence the execution cycle needs.
type CycleStore interface {
	GetJob(ctx context.Context, id uint) (*models.AutomationJob, error)
	JobStatus(ctx context.Context, id uint) (models.JobStatus, error)
	GetCampaign(ctx context.Context, id uint) (*models.Campaign, error)
	ResetQuota(ctx context.Context, jobID uint, day time.Time) error
	ContactedCandidates(ctx context.Context, jobID uint) (map[string]struct{}, error)
	// RecordAttempt appends the ledger entry and applies its counter
	// increments in one transaction.
	RecordAttempt(ctx context.Context, entry *models.OutreachEntry) error
	SaveSchedule(ctx context.Context, jobID uint, lastRun, nextRun time.Time) error
	// MarkJobFatal reports false when the job was no longer active.
	MarkJobFatal(ctx context.Context, jobID uint, message string) (bool, error)
	SaveRun(ctx context.Context, run *models.CycleRun) error
}

// Store is the gorm implementation of every persistence port of the service.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	return s.db.WithContext(ctx).Create(campaign).Error
}

func (s *Store) GetCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrCampaignNotFound, id)
		}
		return nil, err
	}
	return &campaign, nil
}

// isUniqueViolation matches the one-active-job index across drivers; the
// sqlite driver does not translate its constraint errors.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// CreateJobExclusive inserts job unless the user already has an active job
// on the same platform.
func (s *Store) CreateJobExclusive(ctx context.Context, job *models.AutomationJob) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.AutomationJob{}).
			Where("user_id = ? AND platform = ? AND status = ?", job.UserID, job.Platform, models.JobStatusActive).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrActiveJobExists
		}
		return tx.Create(job).Error
	})
	if isUniqueViolation(err) {
		return ErrActiveJobExists
	}
	return err
}

func (s *Store) GetJob(ctx context.Context, id uint) (*models.AutomationJob, error) {
	var job models.AutomationJob
	if err := s.db.WithContext(ctx).First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
		}
		return nil, err
	}
	return &job, nil
}

// ListJobs returns every job of userID, or all jobs when userID is 0.
func (s *Store) ListJobs(ctx context.Context, userID uint) ([]models.AutomationJob, error) {
	var jobs []models.AutomationJob
	query := s.db.WithContext(ctx).Order("created_at desc")
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	err := query.Find(&jobs).Error
	return jobs, err
}

// ListDueJobs returns active jobs whose next run is not in the future.
func (s *Store) ListDueJobs(ctx context.Context, now time.Time) ([]models.AutomationJob, error) {
	var jobs []models.AutomationJob
	err := s.db.WithContext(ctx).
		Where("status = ?", models.JobStatusActive).
		Where("next_run_at IS NULL OR next_run_at <= ?", now).
		Order("next_run_at asc").
		Find(&jobs).Error
	return jobs, err
}

func (s *Store) JobStatus(ctx context.Context, id uint) (models.JobStatus, error) {
	var job models.AutomationJob
	err := s.db.WithContext(ctx).Select("id", "status").First(&job, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %d", ErrJobNotFound, id)
		}
		return "", err
	}
	return job.Status, nil
}

// ActivateJob moves a job from one status to active, unless the user
// already has another active job on the platform.
func (s *Store) ActivateJob(ctx context.Context, job *models.AutomationJob, extra map[string]interface{}) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.AutomationJob{}).
			Where("user_id = ? AND platform = ? AND status = ? AND id <> ?",
				job.UserID, job.Platform, models.JobStatusActive, job.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrActiveJobExists
		}
		return transitionJob(tx, job.ID, job.Status, models.JobStatusActive, extra)
	})
	if isUniqueViolation(err) {
		return ErrActiveJobExists
	}
	return err
}

// TransitionJob moves a job from one status to another. It fails with
// ErrInvalidTransition when the stored status is no longer from.
func (s *Store) TransitionJob(ctx context.Context, id uint, from, to models.JobStatus, extra map[string]interface{}) error {
	return transitionJob(s.db.WithContext(ctx), id, from, to, extra)
}

func transitionJob(db *gorm.DB, id uint, from, to models.JobStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	result := db.Model(&models.AutomationJob{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %d is no longer %s", ErrInvalidTransition, id, from)
	}
	return nil
}

// UpdateJobConfig writes only the named configuration columns.
func (s *Store) UpdateJobConfig(ctx context.Context, job *models.AutomationJob, columns ...string) error {
	if len(columns) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(job).Select(columns).Updates(job).Error
}

// DeleteJob soft-deletes the job; its ledger entries stay.
func (s *Store) DeleteJob(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.AutomationJob{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	return nil
}

func (s *Store) ResetQuota(ctx context.Context, jobID uint, day time.Time) error {
	return s.db.WithContext(ctx).Model(&models.AutomationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"sent_today":       0,
			"last_quota_reset": day,
		}).Error
}

func (s *Store) ContactedCandidates(ctx context.Context, jobID uint) (map[string]struct{}, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&models.OutreachEntry{}).
		Where("job_id = ? AND status = ?", jobID, models.OutreachSuccess).
		Distinct().
		Pluck("candidate", &names).Error
	if err != nil {
		return nil, err
	}

	contacted := make(map[string]struct{}, len(names))
	for _, n := range names {
		contacted[n] = struct{}{}
	}
	return contacted, nil
}

func (s *Store) RecordAttempt(ctx context.Context, entry *models.OutreachEntry) error {
	counters := map[string]interface{}{
		"error_count": gorm.Expr("error_count + ?", 1),
	}
	if entry.Status == models.OutreachSuccess {
		counters = map[string]interface{}{
			"total_sent":    gorm.Expr("total_sent + ?", 1),
			"sent_today":    gorm.Expr("sent_today + ?", 1),
			"success_count": gorm.Expr("success_count + ?", 1),
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}
		result := tx.Model(&models.AutomationJob{}).Where("id = ?", entry.JobID).Updates(counters)
		if result.Error != nil {
			return fmt.Errorf("failed to update job counters: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrJobNotFound, entry.JobID)
		}
		return nil
	})
}

func (s *Store) SaveSchedule(ctx context.Context, jobID uint, lastRun, nextRun time.Time) error {
	return s.db.WithContext(ctx).Model(&models.AutomationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"last_run_at": lastRun,
			"next_run_at": nextRun,
		}).Error
}

// MarkJobFatal only touches jobs that are still active so a concurrent
// pause or stop wins.
func (s *Store) MarkJobFatal(ctx context.Context, jobID uint, message string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.AutomationJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusActive).
		Updates(map[string]interface{}{
			"status":        models.JobStatusError,
			"error_message": message,
			"retry_count":   gorm.Expr("retry_count + ?", 1),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) SaveRun(ctx context.Context, run *models.CycleRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *Store) ListEntries(ctx context.Context, jobID uint, limit, offset int) ([]models.OutreachEntry, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.OutreachEntry{}).
		Where("job_id = ?", jobID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.OutreachEntry
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at desc, id desc").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, total, err
}

func (s *Store) ListRuns(ctx context.Context, jobID uint, limit int) ([]models.CycleRun, error) {
	var runs []models.CycleRun
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("started_at desc, id desc").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
