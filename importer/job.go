// Package importer runs background travel-history import jobs: scan email
// and calendar sources, aggregate country evidence, and persist ranked
// candidates for review.
package importer

import (
	"time"

	"github.com/google/uuid"

	"github.com/stampbook/stampbook/errors"
)

// Status represents the current state of an import job
type Status string

const (
	StatusPending          Status = "pending"
	StatusScanningEmails   Status = "scanning_emails"
	StatusScanningCalendar Status = "scanning_calendar"
	StatusProcessing       Status = "processing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// statusRank orders the non-failed statuses along the pipeline.
var statusRank = map[Status]int{
	StatusPending:          0,
	StatusScanningEmails:   1,
	StatusScanningCalendar: 2,
	StatusProcessing:       3,
	StatusCompleted:        4,
}

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusScanningEmails, StatusScanningCalendar,
		StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Statuses only move forward along the pipeline; failed is reachable from any
// non-terminal state.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Progress is the live progress snapshot persisted with a job.
type Progress struct {
	CurrentStep   string `json:"current_step"`
	EmailsScanned int    `json:"emails_scanned"`
	EmailsTotal   int    `json:"emails_total"`
	EventsScanned int    `json:"events_scanned"`
	EventsTotal   int    `json:"events_total"`
	CalendarYear  int    `json:"calendar_year,omitempty"`
}

// Job represents one import run for one user. The count fields are written
// once, at completion, so polling clients see the outcome without a results
// fetch.
type Job struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Status          Status     `json:"status"`
	Progress        Progress   `json:"progress"`
	CandidatesCount int        `json:"candidates_count"`
	ScannedEmails   int        `json:"scanned_emails"`
	ScannedEvents   int        `json:"scanned_events"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending job for a user
func NewJob(userID string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    StatusPending,
		Progress:  Progress{CurrentStep: "initializing"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the job to a later pipeline status
func (j *Job) Advance(to Status) error {
	if !CanTransition(j.Status, to) {
		return errors.Newf("invalid status transition: %s -> %s", j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	if to.Terminal() {
		completedAt := j.UpdatedAt
		j.CompletedAt = &completedAt
	}
	return nil
}

// Complete marks the job as completed with its final counts
func (j *Job) Complete(candidates, scannedEmails, scannedEvents int) error {
	if err := j.Advance(StatusCompleted); err != nil {
		return err
	}
	j.CandidatesCount = candidates
	j.ScannedEmails = scannedEmails
	j.ScannedEvents = scannedEvents
	return nil
}

// Fail marks the job as failed with an error message
func (j *Job) Fail(message string) error {
	if err := j.Advance(StatusFailed); err != nil {
		return err
	}
	j.Error = message
	return nil
}

// Touch bumps the update timestamp after a progress change
func (j *Job) Touch() {
	j.UpdatedAt = time.Now().UTC()
}
