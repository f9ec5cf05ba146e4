package models

import (
	"encoding/json"
	"time"
)

type OutreachStatus string

const (
	OutreachSuccess OutreachStatus = "success"
	OutreachFailed  OutreachStatus = "failed"
	OutreachError   OutreachStatus = "error"
)

// OutreachEntry is one contact attempt. Rows are append-only.
type OutreachEntry struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	JobID       uint           `gorm:"not null;index:idx_outreach_job_candidate,priority:1" json:"job_id"`
	RunID       string         `gorm:"size:36;index" json:"run_id"`
	Platform    Platform       `gorm:"size:50;not null;index" json:"platform"`
	Candidate   string         `gorm:"size:255;not null;index:idx_outreach_job_candidate,priority:2" json:"candidate"`
	Content     string         `gorm:"type:text" json:"content"`
	Status      OutreachStatus `gorm:"size:20;not null;index" json:"status"`
	ErrorDetail string         `gorm:"type:text" json:"error_detail,omitempty"`
	Metadata    string         `gorm:"type:jsonb" json:"metadata"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (OutreachEntry) TableName() string {
	return "outreach_entries"
}

// SetMetadata stores m as JSON. An empty map is stored as "{}".
func (e *OutreachEntry) SetMetadata(m map[string]string) {
	if len(m) == 0 {
		e.Metadata = "{}"
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		e.Metadata = "{}"
		return
	}
	e.Metadata = string(b)
}

func (e *OutreachEntry) MetadataMap() map[string]string {
	out := map[string]string{}
	if e.Metadata == "" {
		return out
	}
	_ = json.Unmarshal([]byte(e.Metadata), &out)
	return out
}

type RunOutcome string

const (
	RunCompleted      RunOutcome = "completed"
	RunQuotaExhausted RunOutcome = "quota_exhausted"
	RunNoResults      RunOutcome = "no_results"
	RunSearchFailed   RunOutcome = "search_failed"
	RunAborted        RunOutcome = "aborted"
	RunFatal          RunOutcome = "fatal"
)

// CycleRun summarises one execution cycle of a job.
type CycleRun struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	RunID           string     `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	JobID           uint       `gorm:"not null;index" json:"job_id"`
	Platform        Platform   `gorm:"size:50;not null" json:"platform"`
	Outcome         RunOutcome `gorm:"size:30;not null" json:"outcome"`
	CandidatesFound int        `gorm:"default:0" json:"candidates_found"`
	Sent            int        `gorm:"default:0" json:"sent"`
	Failed          int        `gorm:"default:0" json:"failed"`
	Skipped         int        `gorm:"default:0" json:"skipped"`
	Message         string     `gorm:"type:text" json:"message,omitempty"`
	StartedAt       time.Time  `gorm:"not null;index" json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
}

func (CycleRun) TableName() string {
	return "cycle_runs"
}
