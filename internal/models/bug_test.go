package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBugStatus_Valid(t *testing.T) {
	for _, s := range []BugStatus{BugStatusOpen, BugStatusInProgress, BugStatusResolved, BugStatusClosed} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, BugStatus("pending").Valid())
	assert.False(t, BugStatus("").Valid())
}

func TestBugStatus_Terminal(t *testing.T) {
	assert.False(t, BugStatusOpen.Terminal())
	assert.False(t, BugStatusInProgress.Terminal())
	assert.True(t, BugStatusResolved.Terminal())
	assert.True(t, BugStatusClosed.Terminal())
}

func TestBugStatus_Label(t *testing.T) {
	assert.Equal(t, "dibuka", BugStatusOpen.Label())
	assert.Equal(t, "sedang ditangani", BugStatusInProgress.Label())
	assert.Equal(t, "selesai", BugStatusResolved.Label())
	assert.Equal(t, "ditutup", BugStatusClosed.Label())
}

func TestBug_Overdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	b := &Bug{Status: BugStatusOpen}
	assert.False(t, b.Overdue(now), "no deadline")

	b.DueAt = &future
	assert.False(t, b.Overdue(now), "deadline in the future")

	b.DueAt = &past
	assert.True(t, b.Overdue(now))

	b.Status = BugStatusResolved
	assert.False(t, b.Overdue(now), "terminal bugs are never overdue")
}

func TestBug_ResolvedOnTime(t *testing.T) {
	due := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	early := due.Add(-time.Hour)
	late := due.Add(time.Hour)

	assert.False(t, (&Bug{DueAt: &due}).ResolvedOnTime(), "not resolved yet")
	assert.False(t, (&Bug{ResolvedAt: &early}).ResolvedOnTime(), "no deadline")
	assert.True(t, (&Bug{DueAt: &due, ResolvedAt: &early}).ResolvedOnTime())
	assert.True(t, (&Bug{DueAt: &due, ResolvedAt: &due}).ResolvedOnTime(), "exactly on the deadline")
	assert.False(t, (&Bug{DueAt: &due, ResolvedAt: &late}).ResolvedOnTime())
}
