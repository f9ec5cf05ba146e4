package notify

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	// EventOutreachRecorded follows every committed ledger entry.
	EventOutreachRecorded EventType = "outreach.recorded"
	// EventCycleFinished follows every persisted cycle run.
	EventCycleFinished EventType = "cycle.finished"
	// EventJobFailed follows a job moving into the error state.
	EventJobFailed EventType = "job.failed"
)

type Event struct {
	Type      EventType `json:"type"`
	JobID     uint      `json:"job_id"`
	UserID    uint      `json:"user_id"`
	Platform  string    `json:"platform"`
	RunID     string    `json:"run_id,omitempty"`
	Candidate string    `json:"candidate,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

// Notifier delivers events outside the process. Delivery is best effort:
// callers log returned errors and move on.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	Close() error
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }

// Multi fans an event out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
