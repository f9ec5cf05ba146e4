package models

import (
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusActive  JobStatus = "active"
	JobStatusPaused  JobStatus = "paused"
	JobStatusStopped JobStatus = "stopped"
	JobStatusError   JobStatus = "error"
)

// CanTransition reports whether a job may move from s to next.
// stopped is terminal; error only leaves through an explicit resume.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusActive:
		return next == JobStatusPaused || next == JobStatusStopped || next == JobStatusError
	case JobStatusPaused:
		return next == JobStatusActive || next == JobStatusStopped
	case JobStatusError:
		return next == JobStatusActive || next == JobStatusStopped
	default:
		return false
	}
}

// SearchCriteria is validated once when a job is created or updated.
type SearchCriteria struct {
	Keywords string `gorm:"size:500;not null" json:"keywords" validate:"required,max=500"`
	Scope    string `gorm:"size:100" json:"scope,omitempty" validate:"max=100"`
}

type AutomationJob struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	UserID     uint     `gorm:"not null;index" json:"user_id"`
	CampaignID uint     `gorm:"not null;index" json:"campaign_id"`
	Platform   Platform `gorm:"size:50;not null;index" json:"platform"`

	Search          SearchCriteria `gorm:"embedded;embeddedPrefix:search_" json:"search"`
	MessageTemplate string         `gorm:"type:text;not null" json:"message_template"`
	UseAI           bool           `gorm:"default:false" json:"use_ai"`
	ICPFilter       bool           `gorm:"default:false" json:"icp_filter"`
	DailyLimit      int            `gorm:"not null;default:20" json:"daily_limit"`

	Status         JobStatus  `gorm:"size:50;default:'active';index" json:"status"`
	TotalSent      int        `gorm:"default:0" json:"total_sent"`
	SentToday      int        `gorm:"default:0" json:"sent_today"`
	SuccessCount   int        `gorm:"default:0" json:"success_count"`
	ErrorCount     int        `gorm:"default:0" json:"error_count"`
	LastRunAt      *time.Time `json:"last_run_at"`
	NextRunAt      *time.Time `gorm:"index" json:"next_run_at"`
	LastQuotaReset *time.Time `json:"last_quota_reset"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message"`
	RetryCount     int        `gorm:"default:0" json:"retry_count"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (AutomationJob) TableName() string {
	return "automation_jobs"
}

// Remaining returns the send budget left for the current day.
func (j *AutomationJob) Remaining() int {
	if r := j.DailyLimit - j.SentToday; r > 0 {
		return r
	}
	return 0
}

// ResetQuotaIfNewDay zeroes SentToday when the UTC calendar day of now is
// after the last reset. It returns true when a reset happened.
func (j *AutomationJob) ResetQuotaIfNewDay(now time.Time) bool {
	today := truncateDay(now)
	if j.LastQuotaReset != nil && !truncateDay(*j.LastQuotaReset).Before(today) {
		return false
	}
	j.SentToday = 0
	j.LastQuotaReset = &today
	return true
}

// MarkFatal moves the job into the error state.
func (j *AutomationJob) MarkFatal(msg string) {
	j.Status = JobStatusError
	j.ErrorMessage = msg
	j.RetryCount++
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// JobStats is the read model exposed to the operational surface.
type JobStats struct {
	JobID          uint       `json:"job_id"`
	Status         JobStatus  `json:"status"`
	TotalSent      int        `json:"total_sent"`
	SentToday      int        `json:"sent_today"`
	SuccessCount   int        `json:"success_count"`
	ErrorCount     int        `json:"error_count"`
	DailyLimit     int        `json:"daily_limit"`
	RemainingQuota int        `json:"remaining_quota"`
	LastRunAt      *time.Time `json:"last_run_at"`
	NextRunAt      *time.Time `json:"next_run_at"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RetryCount     int        `json:"retry_count"`
}

func (j *AutomationJob) Stats(now time.Time) JobStats {
	sentToday := j.SentToday
	if j.LastQuotaReset == nil || truncateDay(*j.LastQuotaReset).Before(truncateDay(now)) {
		sentToday = 0
	}
	remaining := j.DailyLimit - sentToday
	if remaining < 0 {
		remaining = 0
	}
	return JobStats{
		JobID:          j.ID,
		Status:         j.Status,
		TotalSent:      j.TotalSent,
		SentToday:      sentToday,
		SuccessCount:   j.SuccessCount,
		ErrorCount:     j.ErrorCount,
		DailyLimit:     j.DailyLimit,
		RemainingQuota: remaining,
		LastRunAt:      j.LastRunAt,
		NextRunAt:      j.NextRunAt,
		ErrorMessage:   j.ErrorMessage,
		RetryCount:     j.RetryCount,
	}
}
