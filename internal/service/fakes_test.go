package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ifuryst/outreach/internal/models"
	"github.com/ifuryst/outreach/internal/service/gemini"
	"github.com/ifuryst/outreach/internal/service/notify"
	"github.com/ifuryst/outreach/internal/service/platform"
)

// memStore is an in-memory CycleStore.
type memStore struct {
	mu        sync.Mutex
	jobs      map[uint]*models.AutomationJob
	campaigns map[uint]*models.Campaign
	entries   []models.OutreachEntry
	runs      []models.CycleRun
	recordErr error
	// beforeFatal runs ahead of MarkJobFatal, outside the lock.
	beforeFatal func()
}

func newMemStore() *memStore {
	return &memStore{
		jobs:      map[uint]*models.AutomationJob{},
		campaigns: map[uint]*models.Campaign{},
	}
}

func (s *memStore) putJob(job models.AutomationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = &job
}

func (s *memStore) job(id uint) models.AutomationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memStore) setStatus(id uint, status models.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].Status = status
}

func (s *memStore) GetJob(_ context.Context, id uint) (*models.AutomationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	cp := *job
	return &cp, nil
}

func (s *memStore) JobStatus(ctx context.Context, id uint) (models.JobStatus, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

func (s *memStore) GetCampaign(_ context.Context, id uint) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCampaignNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) ResetQuota(_ context.Context, jobID uint, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID].SentToday = 0
	s.jobs[jobID].LastQuotaReset = &day
	return nil
}

func (s *memStore) ContactedCandidates(_ context.Context, jobID uint) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]struct{}{}
	for _, e := range s.entries {
		if e.JobID == jobID && e.Status == models.OutreachSuccess {
			out[e.Candidate] = struct{}{}
		}
	}
	return out, nil
}

func (s *memStore) RecordAttempt(_ context.Context, entry *models.OutreachEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	job := s.jobs[entry.JobID]
	if entry.Status == models.OutreachSuccess {
		job.TotalSent++
		job.SentToday++
		job.SuccessCount++
	} else {
		job.ErrorCount++
	}
	entry.ID = uint(len(s.entries) + 1)
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memStore) SaveSchedule(_ context.Context, jobID uint, lastRun, nextRun time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID].LastRunAt = &lastRun
	s.jobs[jobID].NextRunAt = &nextRun
	return nil
}

func (s *memStore) MarkJobFatal(_ context.Context, jobID uint, message string) (bool, error) {
	if s.beforeFatal != nil {
		s.beforeFatal()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[jobID]
	if job.Status != models.JobStatusActive {
		return false, nil
	}
	job.Status = models.JobStatusError
	job.ErrorMessage = message
	job.RetryCount++
	return true, nil
}

func (s *memStore) SaveRun(_ context.Context, run *models.CycleRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

func (s *memStore) ledger() []models.OutreachEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OutreachEntry(nil), s.entries...)
}

// fakeAdapter serves canned search results and records sends.
type fakeAdapter struct {
	mu         sync.Mutex
	platform   models.Platform
	account    string
	candidates []platform.Candidate
	searchErr  error
	missing    map[string]bool
	sendErrs   map[string]error
	onSend     func(candidate string)
	searches   int
	sent       []string
	bodies     []string
}

func newFakeAdapter(ids ...string) *fakeAdapter {
	a := &fakeAdapter{
		platform: models.PlatformReddit,
		account:  "outreach_bot",
		missing:  map[string]bool{},
		sendErrs: map[string]error{},
	}
	for _, id := range ids {
		a.candidates = append(a.candidates, platform.Candidate{ID: id, Source: "r/golang search: go"})
	}
	return a
}

func (a *fakeAdapter) Platform() models.Platform { return a.platform }
func (a *fakeAdapter) Enabled() bool             { return true }
func (a *fakeAdapter) AccountID() string         { return a.account }
func (a *fakeAdapter) MaxMessageLength() int     { return 500 }

func (a *fakeAdapter) NormalizeCriteria(c models.SearchCriteria) (models.SearchCriteria, error) {
	if c.Keywords == "" {
		return c, errors.New("search keywords are required")
	}
	if c.Scope == "" {
		c.Scope = "golang"
	}
	return c, nil
}

func (a *fakeAdapter) Search(context.Context, models.SearchCriteria, int) ([]platform.Candidate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches++
	if a.searchErr != nil {
		return nil, a.searchErr
	}
	return append([]platform.Candidate(nil), a.candidates...), nil
}

func (a *fakeAdapter) GetProfile(_ context.Context, id string) (*platform.Profile, error) {
	if a.missing[id] {
		return nil, platform.ErrProfileNotFound
	}
	return &platform.Profile{ID: id, Name: id, Title: "Engineer", Company: "r/golang",
		Attributes: map[string]string{"karma": "42"}}, nil
}

func (a *fakeAdapter) SendMessage(_ context.Context, id string, msg platform.Message) error {
	a.mu.Lock()
	a.sent = append(a.sent, id)
	a.bodies = append(a.bodies, msg.Body)
	hook := a.onSend
	err := a.sendErrs[id]
	a.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return err
}

func (a *fakeAdapter) sentTo() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...)
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingSleeper returns immediately and remembers requested delays.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("model overloaded")
}

type staticGenerator string

func (g staticGenerator) Generate(context.Context, string) (string, error) {
	return string(g), nil
}

// rejectScreener rejects the listed candidates.
type rejectScreener map[string]bool

func (r rejectScreener) Match(_ context.Context, _ *models.Campaign, p *platform.Profile, _ string) gemini.ICPResult {
	if r[p.ID] {
		return gemini.ICPResult{Match: false, Reason: "not a fit"}
	}
	return gemini.ICPResult{Match: true}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) ofType(t notify.EventType) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
