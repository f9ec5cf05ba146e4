package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/models"
	"github.com/ifuryst/outreach/internal/service/gemini"
	"github.com/ifuryst/outreach/internal/service/notify"
	"github.com/ifuryst/outreach/internal/service/platform"
	"github.com/ifuryst/outreach/pkg/util"
)

// Screener decides whether a profile fits the campaign before a message is
// sent. Implementations must not fail; they return a verdict.
type Screener interface {
	Match(ctx context.Context, campaign *models.Campaign, profile *platform.Profile, keywords string) gemini.ICPResult
}

type ExecutorConfig struct {
	// RunInterval is the gap between two cycles of the same job.
	RunInterval time.Duration
	// CallTimeout bounds every adapter and generator call.
	CallTimeout time.Duration
	SearchLimit int
}

type ExecutorOption func(*Executor)

func WithScreener(s Screener) ExecutorOption {
	return func(e *Executor) { e.screener = s }
}

func WithNotifier(n notify.Notifier) ExecutorOption {
	return func(e *Executor) { e.notifier = n }
}

func WithMonitor(m Monitor) ExecutorOption {
	return func(e *Executor) { e.monitor = m }
}

func WithClock(c Clock) ExecutorOption {
	return func(e *Executor) { e.clock = c }
}

// Executor runs the execution cycle of one job: quota reset, discovery,
// deduplication, personalization, paced sending and bookkeeping.
type Executor struct {
	store        CycleStore
	registry     *platform.Registry
	personalizer *Personalizer
	pacing       *PacingPolicy
	screener     Screener
	notifier     notify.Notifier
	monitor      Monitor
	clock        Clock
	config       ExecutorConfig
	logger       *zap.Logger
}

func NewExecutor(
	store CycleStore,
	registry *platform.Registry,
	personalizer *Personalizer,
	pacing *PacingPolicy,
	cfg ExecutorConfig,
	logger *zap.Logger,
	opts ...ExecutorOption,
) *Executor {
	if cfg.RunInterval <= 0 {
		cfg.RunInterval = time.Hour
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 100
	}

	e := &Executor{
		store:        store,
		registry:     registry,
		personalizer: personalizer,
		pacing:       pacing,
		notifier:     notify.Nop{},
		clock:        SystemClock,
		config:       cfg,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// cycle carries the state of one run.
type cycle struct {
	job      *models.AutomationJob
	campaign *models.Campaign
	adapter  platform.Adapter
	run      *models.CycleRun
	logger   *zap.Logger
}

// Run executes one cycle for jobID. It returns (nil, nil) when the job is
// not active. A *JobFatalError means the job was moved to the error state.
// When the job left the active state during the cycle the fatal condition
// is dropped and the run is returned without error.
func (e *Executor) Run(ctx context.Context, jobID uint) (*models.CycleRun, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusActive {
		return nil, nil
	}

	now := e.clock.Now()
	c := &cycle{
		job: job,
		run: &models.CycleRun{
			RunID:     uuid.NewString(),
			JobID:     job.ID,
			Platform:  job.Platform,
			StartedAt: now,
		},
	}
	c.logger = e.logger.With(
		zap.Uint("job_id", job.ID),
		zap.String("platform", string(job.Platform)),
		zap.String("run_id", c.run.RunID))

	if err := e.prepare(ctx, c); err != nil {
		var fatal *JobFatalError
		if errors.As(err, &fatal) {
			return c.run, e.fail(ctx, c, fatal)
		}
		return nil, err
	}

	if job.ResetQuotaIfNewDay(now) {
		if err := e.store.ResetQuota(ctx, job.ID, *job.LastQuotaReset); err != nil {
			return nil, fmt.Errorf("failed to reset daily quota: %w", err)
		}
		c.logger.Info("Daily quota reset")
	}

	if job.Remaining() <= 0 {
		c.logger.Info("Daily limit reached, skipping cycle",
			zap.Int("sent_today", job.SentToday),
			zap.Int("daily_limit", job.DailyLimit))
		return c.run, e.finish(ctx, c, models.RunQuotaExhausted, "")
	}

	candidates, err := e.discover(ctx, c)
	if err != nil {
		c.logger.Warn("Search failed", zap.Error(err))
		return c.run, e.finish(ctx, c, models.RunSearchFailed, err.Error())
	}
	if c.run.CandidatesFound == 0 {
		c.logger.Info("Search returned no candidates")
		return c.run, e.finish(ctx, c, models.RunNoResults, "")
	}

	outcome, msg := e.sendAll(ctx, c, candidates)
	return c.run, e.finish(ctx, c, outcome, msg)
}

// prepare resolves the campaign and adapter. Missing collaborators are
// job-fatal; storage failures are returned as is.
func (e *Executor) prepare(ctx context.Context, c *cycle) error {
	campaign, err := e.store.GetCampaign(ctx, c.job.CampaignID)
	if err != nil {
		if errors.Is(err, ErrCampaignNotFound) {
			return &JobFatalError{JobID: c.job.ID, Reason: "campaign no longer exists", Err: err}
		}
		return fmt.Errorf("failed to load campaign: %w", err)
	}
	c.campaign = campaign

	adapter, err := e.registry.Get(c.job.Platform)
	if err != nil {
		return &JobFatalError{JobID: c.job.ID, Reason: "platform is not supported", Err: err}
	}
	if !adapter.Enabled() {
		return &JobFatalError{JobID: c.job.ID, Reason: "platform adapter is not configured", Err: platform.ErrDisabled}
	}
	c.adapter = adapter
	return nil
}

// discover searches and removes candidates the job must not contact.
func (e *Executor) discover(ctx context.Context, c *cycle) ([]platform.Candidate, error) {
	var found []platform.Candidate
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		found, err = c.adapter.Search(ctx, c.job.Search, e.config.SearchLimit)
		return err
	})
	if err != nil {
		return nil, err
	}

	unique := platform.UniqueCandidates(found, c.adapter.AccountID())
	c.run.CandidatesFound = len(unique)
	if len(unique) == 0 {
		return nil, nil
	}

	contacted, err := e.store.ContactedCandidates(ctx, c.job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacted candidates: %w", err)
	}

	fresh := make([]platform.Candidate, 0, len(unique))
	for _, cand := range unique {
		if _, done := contacted[cand.ID]; done {
			continue
		}
		fresh = append(fresh, cand)
	}

	c.logger.Info("Candidates discovered",
		zap.Int("found", len(found)),
		zap.Int("unique", len(unique)),
		zap.Int("new", len(fresh)))
	return fresh, nil
}

// sendAll walks candidates in discovery order until the daily budget is
// spent. Single-candidate failures never end the batch.
func (e *Executor) sendAll(ctx context.Context, c *cycle, candidates []platform.Candidate) (models.RunOutcome, string) {
	attempts := 0
	consecutiveFailures := 0

	for i, cand := range candidates {
		if c.job.Remaining() <= 0 {
			break
		}

		if i > 0 {
			if stop, reason := e.shouldAbort(ctx, c); stop {
				return models.RunAborted, reason
			}
		}

		profile, err := e.profile(ctx, c, cand)
		if err != nil {
			c.run.Skipped++
			c.logger.Debug("Skipping candidate without profile",
				zap.String("candidate", cand.ID), zap.Error(err))
			continue
		}

		if c.job.ICPFilter && e.screener != nil {
			verdict := e.screen(ctx, c, profile)
			if !verdict.Match {
				c.run.Skipped++
				c.logger.Debug("Candidate does not match ICP",
					zap.String("candidate", cand.ID),
					zap.String("reason", verdict.Reason))
				continue
			}
		}

		content := e.personalizer.Personalize(ctx, c.job.MessageTemplate, profile, c.campaign,
			c.job.Platform, c.job.UseAI, c.adapter.MaxMessageLength())

		if attempts > 0 {
			if err := e.pacing.Wait(ctx, c.job.Platform, consecutiveFailures); err != nil {
				return models.RunAborted, "cancelled while pacing: " + err.Error()
			}
		}
		attempts++

		entry := e.send(ctx, c, cand, profile, content)
		if err := e.store.RecordAttempt(ctx, entry); err != nil {
			// a missing ledger entry would allow repeat contact
			c.logger.Error("Failed to record outreach attempt",
				zap.String("candidate", cand.ID), zap.Error(err))
			return models.RunAborted, "ledger write failed: " + err.Error()
		}

		if entry.Status == models.OutreachSuccess {
			c.job.SentToday++
			c.job.TotalSent++
			c.job.SuccessCount++
			c.run.Sent++
			consecutiveFailures = 0
		} else {
			c.job.ErrorCount++
			c.run.Failed++
			consecutiveFailures++
		}
		e.publish(ctx, c, notify.Event{
			Type:      notify.EventOutreachRecorded,
			Candidate: entry.Candidate,
			Status:    string(entry.Status),
			Message:   entry.ErrorDetail,
		})
	}

	return models.RunCompleted, ""
}

// shouldAbort re-reads the job status so that a pause or stop issued during
// the cycle takes effect before the next candidate.
func (e *Executor) shouldAbort(ctx context.Context, c *cycle) (bool, string) {
	if err := ctx.Err(); err != nil {
		return true, "cancelled: " + err.Error()
	}
	status, err := e.store.JobStatus(ctx, c.job.ID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			c.logger.Info("Job deleted during cycle")
			return true, "job deleted"
		}
		// keep going on a transient read error, the next check retries
		c.logger.Warn("Failed to re-check job status", zap.Error(err))
		return false, ""
	}
	if status != models.JobStatusActive {
		c.logger.Info("Job status changed during cycle", zap.String("status", string(status)))
		return true, "job is " + string(status)
	}
	return false, ""
}

func (e *Executor) profile(ctx context.Context, c *cycle, cand platform.Candidate) (*platform.Profile, error) {
	var profile *platform.Profile
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		profile, err = c.adapter.GetProfile(ctx, cand.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, platform.ErrProfileNotFound
	}
	return profile, nil
}

func (e *Executor) screen(ctx context.Context, c *cycle, profile *platform.Profile) gemini.ICPResult {
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()
	return e.screener.Match(callCtx, c.campaign, profile, c.job.Search.Keywords)
}

func (e *Executor) send(ctx context.Context, c *cycle, cand platform.Candidate, profile *platform.Profile, content string) *models.OutreachEntry {
	err := e.call(ctx, func(ctx context.Context) error {
		return c.adapter.SendMessage(ctx, cand.ID, platform.Message{
			Subject: fmt.Sprintf("Quick question about %s", c.campaign.ProductName),
			Body:    content,
		})
	})

	entry := &models.OutreachEntry{
		JobID:     c.job.ID,
		RunID:     c.run.RunID,
		Platform:  c.job.Platform,
		Candidate: cand.ID,
		Content:   content,
		Status:    models.OutreachSuccess,
		CreatedAt: e.clock.Now(),
	}
	entry.SetMetadata(ledgerMetadata(cand, profile))

	switch {
	case err == nil:
		c.logger.Info("Message sent",
			zap.String("candidate", cand.ID),
			zap.String("preview", util.Preview(content, 60)))
	case errors.Is(err, platform.ErrMessageRejected):
		entry.Status = models.OutreachFailed
		entry.ErrorDetail = err.Error()
		c.logger.Warn("Message rejected", zap.String("candidate", cand.ID), zap.Error(err))
	default:
		entry.Status = models.OutreachError
		entry.ErrorDetail = err.Error()
		c.logger.Warn("Message send failed", zap.String("candidate", cand.ID), zap.Error(err))
	}
	return entry
}

func ledgerMetadata(cand platform.Candidate, profile *platform.Profile) map[string]string {
	meta := make(map[string]string, len(cand.Attributes)+len(profile.Attributes)+1)
	for k, v := range cand.Attributes {
		meta[k] = v
	}
	for k, v := range profile.Attributes {
		meta[k] = v
	}
	if cand.Source != "" {
		meta["source"] = cand.Source
	}
	return meta
}

// call bounds fn with the per-call timeout.
func (e *Executor) call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()
	return fn(callCtx)
}

// finish reschedules the job and records the run.
func (e *Executor) finish(ctx context.Context, c *cycle, outcome models.RunOutcome, msg string) error {
	// bookkeeping must land even when the cycle was cancelled
	ctx = context.WithoutCancel(ctx)

	now := e.clock.Now()
	next := now.Add(e.config.RunInterval)
	c.job.LastRunAt = &now
	c.job.NextRunAt = &next
	if err := e.store.SaveSchedule(ctx, c.job.ID, now, next); err != nil {
		return fmt.Errorf("failed to save job schedule: %w", err)
	}

	c.run.Outcome = outcome
	c.run.Message = msg
	c.run.FinishedAt = now
	if err := e.store.SaveRun(ctx, c.run); err != nil {
		c.logger.Error("Failed to save cycle run", zap.Error(err))
	}

	if e.monitor != nil {
		tags := map[string]interface{}{"platform": c.job.Platform, "job_id": c.job.ID, "outcome": outcome}
		if err := e.monitor.RecordMetric("outreach_sent", "counter", float64(c.run.Sent), tags); err != nil {
			c.logger.Debug("Failed to record metric", zap.Error(err))
		}
	}

	e.publish(ctx, c, notify.Event{Type: notify.EventCycleFinished, Status: string(outcome), Message: msg})
	c.logger.Info("Cycle finished",
		zap.String("outcome", string(outcome)),
		zap.Int("candidates", c.run.CandidatesFound),
		zap.Int("sent", c.run.Sent),
		zap.Int("failed", c.run.Failed),
		zap.Int("skipped", c.run.Skipped),
		zap.Time("next_run_at", next))
	return nil
}

// fail moves the job into the error state and returns the fatal error. A
// job paused or stopped meanwhile keeps its status and the run is recorded
// as aborted.
func (e *Executor) fail(ctx context.Context, c *cycle, fatal *JobFatalError) error {
	ctx = context.WithoutCancel(ctx)
	msg := fatal.Error()

	marked, err := e.store.MarkJobFatal(ctx, c.job.ID, msg)
	if err != nil {
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}
	c.run.Message = msg
	c.run.FinishedAt = e.clock.Now()
	if !marked {
		c.run.Outcome = models.RunAborted
		if err := e.store.SaveRun(ctx, c.run); err != nil {
			c.logger.Error("Failed to save cycle run", zap.Error(err))
		}
		c.logger.Info("Job no longer active, fatal condition dropped", zap.String("reason", fatal.Reason))
		return nil
	}

	c.job.MarkFatal(msg)
	c.run.Outcome = models.RunFatal
	if err := e.store.SaveRun(ctx, c.run); err != nil {
		c.logger.Error("Failed to save cycle run", zap.Error(err))
	}

	if e.monitor != nil {
		if err := e.monitor.RecordError("ERROR", "executor", "Job moved to error state", msg,
			WithJob(c.job.ID),
			WithPlatform(c.job.Platform),
			WithContext(map[string]interface{}{"run_id": c.run.RunID, "reason": fatal.Reason}),
		); err != nil {
			c.logger.Debug("Failed to record error log", zap.Error(err))
		}
	}

	e.publish(ctx, c, notify.Event{Type: notify.EventJobFailed, Status: string(models.JobStatusError), Message: msg})
	c.logger.Error("Job moved to error state", zap.String("reason", fatal.Reason), zap.Error(fatal.Err))
	return fatal
}

func (e *Executor) publish(ctx context.Context, c *cycle, event notify.Event) {
	event.JobID = c.job.ID
	event.UserID = c.job.UserID
	event.Platform = string(c.job.Platform)
	event.RunID = c.run.RunID
	if event.Time.IsZero() {
		event.Time = e.clock.Now()
	}

	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()
	if err := e.notifier.Notify(callCtx, event); err != nil {
		c.logger.Warn("Failed to deliver notification",
			zap.String("event", string(event.Type)), zap.Error(err))
	}
}
