package service

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrActiveJobExists   = errors.New("an active job already exists for this platform")
	ErrInvalidRequest    = errors.New("invalid request")
)

// JobFatalError is returned by a cycle that moved its job into the error
// state. The job stays there until an operator resumes it.
type JobFatalError struct {
	JobID  uint
	Reason string
	Err    error
}

func (e *JobFatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job %d: %s: %v", e.JobID, e.Reason, e.Err)
	}
	return fmt.Sprintf("job %d: %s", e.JobID, e.Reason)
}

func (e *JobFatalError) Unwrap() error {
	return e.Err
}
