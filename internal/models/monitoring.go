package models

import (
	"time"
)

// PlatformStats 平台级别每日外联统计
type PlatformStats struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Date         time.Time  `gorm:"uniqueIndex:idx_platform_stats_day,priority:1;not null" json:"date"`
	Platform     Platform   `gorm:"uniqueIndex:idx_platform_stats_day,priority:2;size:50;not null" json:"platform"`
	ActiveJobs   int        `gorm:"default:0" json:"active_jobs"`
	ErrorJobs    int        `gorm:"default:0" json:"error_jobs"`
	Sent         int        `gorm:"default:0" json:"sent"`
	Failed       int        `gorm:"default:0" json:"failed"`
	Runs         int        `gorm:"default:0" json:"runs"`
	LastSentAt   *time.Time `json:"last_sent_at"`
	LastFailedAt *time.Time `json:"last_failed_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ErrorLog 错误日志表
type ErrorLog struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Level      string     `gorm:"size:20;not null;index" json:"level"`   // ERROR, WARN, INFO
	Source     string     `gorm:"size:100;not null;index" json:"source"` // executor, scheduler, notify等
	Platform   Platform   `gorm:"size:50;index" json:"platform"`
	JobID      *uint      `gorm:"index" json:"job_id"`
	Title      string     `gorm:"size:500;not null" json:"title"`
	Message    string     `gorm:"type:text;not null" json:"message"`
	Context    string     `gorm:"type:jsonb" json:"context"`
	Resolved   bool       `gorm:"default:false;index" json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MetricsSample 指标采样数据
type MetricsSample struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MetricName string    `gorm:"size:100;not null;index" json:"metric_name"` // 指标名称
	MetricType string    `gorm:"size:50;not null" json:"metric_type"`        // gauge, counter, histogram
	Value      float64   `gorm:"not null" json:"value"`
	Tags       string    `gorm:"type:jsonb" json:"tags"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
