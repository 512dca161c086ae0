package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusScanningEmails, true},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, true},
		{StatusScanningEmails, StatusScanningCalendar, true},
		{StatusScanningCalendar, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},

		// Never backwards
		{StatusScanningCalendar, StatusScanningEmails, false},
		{StatusProcessing, StatusPending, false},
		{StatusScanningEmails, StatusScanningEmails, false},

		// Failed is reachable from any non-terminal state
		{StatusPending, StatusFailed, true},
		{StatusScanningEmails, StatusFailed, true},
		{StatusProcessing, StatusFailed, true},

		// Terminal states are final
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusFailed, false},
		{StatusCompleted, StatusScanningEmails, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, s := range []string{"pending", "scanning_emails", "scanning_calendar", "processing", "completed", "failed"} {
		assert.True(t, IsValidStatus(s), s)
	}
	assert.False(t, IsValidStatus("running"))
	assert.False(t, IsValidStatus(""))
}

func TestNewJob(t *testing.T) {
	job := NewJob("user-1")

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, "initializing", job.Progress.CurrentStep)
	assert.Nil(t, job.CompletedAt)
	assert.Equal(t, job.CreatedAt, job.UpdatedAt)

	other := NewJob("user-1")
	assert.NotEqual(t, job.ID, other.ID)
}

func TestJobAdvance(t *testing.T) {
	job := NewJob("user-1")

	require.NoError(t, job.Advance(StatusScanningEmails))
	assert.Equal(t, StatusScanningEmails, job.Status)
	assert.Nil(t, job.CompletedAt)

	err := job.Advance(StatusPending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status transition")
	assert.Equal(t, StatusScanningEmails, job.Status, "status unchanged after invalid transition")
}

func TestJobComplete(t *testing.T) {
	job := NewJob("user-1")
	require.NoError(t, job.Advance(StatusProcessing))
	require.NoError(t, job.Complete(3, 120, 45))

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 3, job.CandidatesCount)
	assert.Equal(t, 120, job.ScannedEmails)
	assert.Equal(t, 45, job.ScannedEvents)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, job.UpdatedAt, *job.CompletedAt)

	assert.Error(t, job.Fail("too late"))
}

func TestJobComplete_RejectedFromTerminal(t *testing.T) {
	job := NewJob("user-1")
	require.NoError(t, job.Fail("gmail unavailable"))

	require.Error(t, job.Complete(3, 120, 45))
	assert.Zero(t, job.CandidatesCount, "counts untouched after rejected completion")
	assert.Zero(t, job.ScannedEmails)
	assert.Zero(t, job.ScannedEvents)
}

func TestJobFail(t *testing.T) {
	job := NewJob("user-1")
	require.NoError(t, job.Fail("gmail unavailable"))

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "gmail unavailable", job.Error)
	require.NotNil(t, job.CompletedAt)

	assert.Error(t, job.Advance(StatusScanningEmails))
}
