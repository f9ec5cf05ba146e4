package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/outreach/internal/models"
)

// Monitor is the slice of MonitoringService the execution cycle uses.
type Monitor interface {
	RecordError(level, source, title, message string, options ...ErrorLogOption) error
	RecordMetric(name, metricType string, value float64, tags map[string]interface{}) error
}

type MonitoringService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMonitoringService(db *gorm.DB, logger *zap.Logger) *MonitoringService {
	return &MonitoringService{
		db:     db,
		logger: logger,
	}
}

// RecordError 记录错误日志
func (m *MonitoringService) RecordError(level, source, title, message string, options ...ErrorLogOption) error {
	errorLog := &models.ErrorLog{
		Level:   level,
		Source:  source,
		Title:   title,
		Message: message,
		Context: "{}",
	}

	// 应用选项
	for _, option := range options {
		option(errorLog)
	}

	return m.db.Create(errorLog).Error
}

// ErrorLogOption 错误日志选项
type ErrorLogOption func(*models.ErrorLog)

// WithPlatform 设置平台
func WithPlatform(platform models.Platform) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.Platform = platform
	}
}

// WithJob 设置任务ID
func WithJob(jobID uint) ErrorLogOption {
	return func(e *models.ErrorLog) {
		e.JobID = &jobID
	}
}

// WithContext 设置上下文信息
func WithContext(context map[string]interface{}) ErrorLogOption {
	return func(e *models.ErrorLog) {
		if contextBytes, err := json.Marshal(context); err == nil {
			e.Context = string(contextBytes)
		}
	}
}

// RecordMetric 记录指标数据
func (m *MonitoringService) RecordMetric(name, metricType string, value float64, tags map[string]interface{}) error {
	tagsJSON := "{}"
	if tags != nil {
		if tagsBytes, err := json.Marshal(tags); err == nil {
			tagsJSON = string(tagsBytes)
		}
	}

	metric := &models.MetricsSample{
		MetricName: name,
		MetricType: metricType,
		Value:      value,
		Tags:       tagsJSON,
		Timestamp:  time.Now().UTC(),
	}

	return m.db.Create(metric).Error
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// UpdatePlatformStats 汇总当天每个平台的外联统计
func (m *MonitoringService) UpdatePlatformStats(now time.Time) error {
	today := startOfDay(now)

	var platforms []models.Platform
	if err := m.db.Model(&models.AutomationJob{}).Distinct().Pluck("platform", &platforms).Error; err != nil {
		return err
	}

	for _, platform := range platforms {
		var activeJobs, errorJobs, sent, failed, runs int64
		m.db.Model(&models.AutomationJob{}).Where("platform = ? AND status = ?", platform, models.JobStatusActive).Count(&activeJobs)
		m.db.Model(&models.AutomationJob{}).Where("platform = ? AND status = ?", platform, models.JobStatusError).Count(&errorJobs)
		m.db.Model(&models.OutreachEntry{}).Where("platform = ? AND status = ? AND created_at >= ?", platform, models.OutreachSuccess, today).Count(&sent)
		m.db.Model(&models.OutreachEntry{}).Where("platform = ? AND status <> ? AND created_at >= ?", platform, models.OutreachSuccess, today).Count(&failed)
		m.db.Model(&models.CycleRun{}).Where("platform = ? AND started_at >= ?", platform, today).Count(&runs)

		// 最后成功和失败时间
		var lastSent, lastFailed models.OutreachEntry
		m.db.Where("platform = ? AND status = ? AND created_at >= ?", platform, models.OutreachSuccess, today).Order("created_at desc").Limit(1).Find(&lastSent)
		m.db.Where("platform = ? AND status <> ? AND created_at >= ?", platform, models.OutreachSuccess, today).Order("created_at desc").Limit(1).Find(&lastFailed)

		var stats models.PlatformStats
		result := m.db.Where("date = ? AND platform = ?", today, platform).First(&stats)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			// 创建新记录
			stats = models.PlatformStats{
				Date:       today,
				Platform:   platform,
				ActiveJobs: int(activeJobs),
				ErrorJobs:  int(errorJobs),
				Sent:       int(sent),
				Failed:     int(failed),
				Runs:       int(runs),
			}
			if lastSent.ID != 0 {
				stats.LastSentAt = &lastSent.CreatedAt
			}
			if lastFailed.ID != 0 {
				stats.LastFailedAt = &lastFailed.CreatedAt
			}
			if err := m.db.Create(&stats).Error; err != nil {
				return err
			}
			continue
		}
		if result.Error != nil {
			return result.Error
		}

		// 更新现有记录
		updates := map[string]interface{}{
			"active_jobs": activeJobs,
			"error_jobs":  errorJobs,
			"sent":        sent,
			"failed":      failed,
			"runs":        runs,
		}
		if lastSent.ID != 0 {
			updates["last_sent_at"] = lastSent.CreatedAt
		}
		if lastFailed.ID != 0 {
			updates["last_failed_at"] = lastFailed.CreatedAt
		}
		if err := m.db.Model(&stats).Updates(updates).Error; err != nil {
			return err
		}
	}

	return nil
}

// GetRecentErrors 获取最近的错误日志
func (m *MonitoringService) GetRecentErrors(limit int) ([]models.ErrorLog, error) {
	var logs []models.ErrorLog
	err := m.db.Order("created_at desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetPlatformStats 获取平台统计数据
func (m *MonitoringService) GetPlatformStats(days int) ([]models.PlatformStats, error) {
	var stats []models.PlatformStats
	startDate := startOfDay(time.Now().AddDate(0, 0, -days))

	err := m.db.Where("date >= ?", startDate).
		Order("date desc, platform").
		Find(&stats).Error
	return stats, err
}

// CleanupOldData 清理旧数据
func (m *MonitoringService) CleanupOldData(daysToKeep int) error {
	cutoffDate := time.Now().UTC().AddDate(0, 0, -daysToKeep)

	// 清理旧的指标数据
	if err := m.db.Where("timestamp < ?", cutoffDate).Delete(&models.MetricsSample{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup metrics samples: %w", err)
	}

	// 清理旧的平台统计数据
	if err := m.db.Where("date < ?", cutoffDate).Delete(&models.PlatformStats{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup platform stats: %w", err)
	}

	// 清理已解决的旧错误日志
	if err := m.db.Where("created_at < ? AND resolved = ?", cutoffDate, true).Delete(&models.ErrorLog{}).Error; err != nil {
		return fmt.Errorf("failed to cleanup resolved errors: %w", err)
	}

	return nil
}
