package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/models"
	"github.com/ifuryst/outreach/internal/service/platform"
)

type StartJobRequest struct {
	UserID          uint                  `json:"user_id" validate:"required"`
	CampaignID      uint                  `json:"campaign_id" validate:"required"`
	Platform        string                `json:"platform" validate:"required"`
	Search          models.SearchCriteria `json:"search"`
	MessageTemplate string                `json:"message_template" validate:"required,max=5000"`
	UseAI           bool                  `json:"use_ai"`
	ICPFilter       bool                  `json:"icp_filter"`
	DailyLimit      int                   `json:"daily_limit" validate:"omitempty,min=1,max=200"`
}

// UpdateJobRequest changes only the fields that are set.
type UpdateJobRequest struct {
	Search          *models.SearchCriteria `json:"search"`
	MessageTemplate *string                `json:"message_template" validate:"omitempty,min=1,max=5000"`
	UseAI           *bool                  `json:"use_ai"`
	ICPFilter       *bool                  `json:"icp_filter"`
	DailyLimit      *int                   `json:"daily_limit" validate:"omitempty,min=1,max=200"`
}

type CreateCampaignRequest struct {
	UserID      uint   `json:"user_id" validate:"required"`
	ProductName string `json:"product_name" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	Tone        string `json:"tone" validate:"max=50"`
	CTA         string `json:"cta" validate:"max=255"`
}

// AutomationService is the operational surface over jobs and campaigns.
type AutomationService struct {
	store             *Store
	registry          *platform.Registry
	validate          *validator.Validate
	clock             Clock
	defaultDailyLimit int
	logger            *zap.Logger
}

func NewAutomationService(store *Store, registry *platform.Registry, defaultDailyLimit int, clock Clock, logger *zap.Logger) *AutomationService {
	if clock == nil {
		clock = SystemClock
	}
	if defaultDailyLimit <= 0 {
		defaultDailyLimit = 20
	}
	return &AutomationService{
		store:             store,
		registry:          registry,
		validate:          validator.New(),
		clock:             clock,
		defaultDailyLimit: defaultDailyLimit,
		logger:            logger,
	}
}

func (s *AutomationService) check(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (s *AutomationService) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*models.Campaign, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	campaign := &models.Campaign{
		UserID:      req.UserID,
		ProductName: req.ProductName,
		Description: req.Description,
		Tone:        req.Tone,
		CTA:         req.CTA,
	}
	if campaign.Tone == "" {
		campaign.Tone = models.DefaultTone
	}
	if err := s.store.CreateCampaign(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

func (s *AutomationService) GetCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	return s.store.GetCampaign(ctx, id)
}

// normalize validates criteria through the platform adapter. Disabled
// adapters are rejected so no job is created that can only fail.
func (s *AutomationService) normalize(p models.Platform, criteria models.SearchCriteria) (models.SearchCriteria, error) {
	if err := s.check(criteria); err != nil {
		return criteria, err
	}
	adapter, err := s.registry.Get(p)
	if err != nil {
		return criteria, err
	}
	if !adapter.Enabled() {
		return criteria, fmt.Errorf("%s: %w", p, platform.ErrDisabled)
	}
	normalized, err := adapter.NormalizeCriteria(criteria)
	if err != nil {
		return criteria, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return normalized, nil
}

func (s *AutomationService) StartJob(ctx context.Context, req StartJobRequest) (*models.AutomationJob, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	p, err := models.ParsePlatform(req.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrUnsupportedPlatform, err)
	}

	campaign, err := s.store.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign.UserID != req.UserID {
		return nil, fmt.Errorf("%w: %d", ErrCampaignNotFound, req.CampaignID)
	}

	criteria, err := s.normalize(p, req.Search)
	if err != nil {
		return nil, err
	}

	dailyLimit := req.DailyLimit
	if dailyLimit == 0 {
		dailyLimit = s.defaultDailyLimit
	}

	now := s.clock.Now()
	job := &models.AutomationJob{
		UserID:          req.UserID,
		CampaignID:      req.CampaignID,
		Platform:        p,
		Search:          criteria,
		MessageTemplate: req.MessageTemplate,
		UseAI:           req.UseAI,
		ICPFilter:       req.ICPFilter,
		DailyLimit:      dailyLimit,
		Status:          models.JobStatusActive,
		NextRunAt:       &now,
	}
	job.ResetQuotaIfNewDay(now)

	if err := s.store.CreateJobExclusive(ctx, job); err != nil {
		if errors.Is(err, ErrActiveJobExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Automation job started",
		zap.Uint("job_id", job.ID),
		zap.Uint("user_id", job.UserID),
		zap.String("platform", string(job.Platform)),
		zap.String("scope", job.Search.Scope))
	s.warnUnknownPlaceholders(job.ID, job.MessageTemplate)
	return job, nil
}

// warnUnknownPlaceholders flags template fields no profile can fill; they
// are sent verbatim.
func (s *AutomationService) warnUnknownPlaceholders(jobID uint, template string) {
	if unknown := UnknownPlaceholders(template); len(unknown) > 0 {
		s.logger.Warn("Message template has unknown placeholders",
			zap.Uint("job_id", jobID),
			zap.Strings("placeholders", unknown))
	}
}

func (s *AutomationService) GetJob(ctx context.Context, id uint) (*models.AutomationJob, error) {
	return s.store.GetJob(ctx, id)
}

func (s *AutomationService) ListJobs(ctx context.Context, userID uint) ([]models.AutomationJob, error) {
	return s.store.ListJobs(ctx, userID)
}

func (s *AutomationService) transition(ctx context.Context, id uint, to models.JobStatus, extra map[string]interface{}) (*models.AutomationJob, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, to)
	}
	if err := s.store.TransitionJob(ctx, id, job.Status, to, extra); err != nil {
		return nil, err
	}

	s.logger.Info("Automation job status changed",
		zap.Uint("job_id", id),
		zap.String("from", string(job.Status)),
		zap.String("to", string(to)))
	return s.store.GetJob(ctx, id)
}

func (s *AutomationService) PauseJob(ctx context.Context, id uint) (*models.AutomationJob, error) {
	return s.transition(ctx, id, models.JobStatusPaused, nil)
}

// ResumeJob reactivates a paused or failed job and schedules it right away.
func (s *AutomationService) ResumeJob(ctx context.Context, id uint) (*models.AutomationJob, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanTransition(models.JobStatusActive) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, models.JobStatusActive)
	}
	if err := s.store.ActivateJob(ctx, job, map[string]interface{}{
		"error_message": "",
		"next_run_at":   s.clock.Now(),
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Automation job status changed",
		zap.Uint("job_id", id),
		zap.String("from", string(job.Status)),
		zap.String("to", string(models.JobStatusActive)))
	return s.store.GetJob(ctx, id)
}

func (s *AutomationService) StopJob(ctx context.Context, id uint) (*models.AutomationJob, error) {
	return s.transition(ctx, id, models.JobStatusStopped, nil)
}

func (s *AutomationService) UpdateJob(ctx context.Context, id uint, req UpdateJobRequest) (*models.AutomationJob, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusStopped {
		return nil, fmt.Errorf("%w: stopped jobs cannot be updated", ErrInvalidTransition)
	}

	var columns []string
	if req.Search != nil {
		criteria, err := s.normalize(job.Platform, *req.Search)
		if err != nil {
			return nil, err
		}
		job.Search = criteria
		columns = append(columns, "search_keywords", "search_scope")
	}
	if req.MessageTemplate != nil {
		job.MessageTemplate = *req.MessageTemplate
		columns = append(columns, "message_template")
		s.warnUnknownPlaceholders(job.ID, job.MessageTemplate)
	}
	if req.UseAI != nil {
		job.UseAI = *req.UseAI
		columns = append(columns, "use_ai")
	}
	if req.ICPFilter != nil {
		job.ICPFilter = *req.ICPFilter
		columns = append(columns, "icp_filter")
	}
	if req.DailyLimit != nil {
		if sent := job.Stats(s.clock.Now()).SentToday; *req.DailyLimit < sent {
			return nil, fmt.Errorf("%w: daily limit %d is below the %d messages already sent today",
				ErrInvalidRequest, *req.DailyLimit, sent)
		}
		job.DailyLimit = *req.DailyLimit
		columns = append(columns, "daily_limit")
	}

	if err := s.store.UpdateJobConfig(ctx, job, columns...); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return s.store.GetJob(ctx, id)
}

func (s *AutomationService) DeleteJob(ctx context.Context, id uint) error {
	if err := s.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Automation job deleted", zap.Uint("job_id", id))
	return nil
}

func (s *AutomationService) JobStats(ctx context.Context, id uint) (*models.JobStats, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	stats := job.Stats(s.clock.Now())
	return &stats, nil
}

func (s *AutomationService) ListEntries(ctx context.Context, jobID uint, limit, offset int) ([]models.OutreachEntry, int64, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListEntries(ctx, jobID, limit, offset)
}

func (s *AutomationService) ListRuns(ctx context.Context, jobID uint, limit int) ([]models.CycleRun, error) {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	return s.store.ListRuns(ctx, jobID, limit)
}

func (s *AutomationService) Platforms() []platform.Info {
	return s.registry.List()
}
