package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_TouchAndOnline(t *testing.T) {
	tr := NewTracker(time.Minute)

	assert.False(t, tr.Online("u1"))

	tr.Touch("u1")
	assert.True(t, tr.Online("u1"))
	assert.False(t, tr.Online("u2"))
}

func TestTracker_Expiry(t *testing.T) {
	tr := NewTracker(time.Minute)
	now := time.Now()
	tr.now = func() time.Time { return now }

	tr.Touch("u1")
	assert.True(t, tr.Online("u1"))

	now = now.Add(61 * time.Second)
	assert.False(t, tr.Online("u1"))
}

func TestTracker_SnapshotPrunes(t *testing.T) {
	tr := NewTracker(time.Minute)
	now := time.Now()
	tr.now = func() time.Time { return now }

	tr.Touch("fresh")
	tr.Touch("stale")

	now = now.Add(30 * time.Second)
	tr.Touch("fresh")

	now = now.Add(45 * time.Second)
	online := tr.Snapshot()
	assert.Equal(t, []string{"fresh"}, online)

	// Stale entry was pruned, not just filtered.
	tr.mu.RLock()
	_, ok := tr.lastSeen["stale"]
	tr.mu.RUnlock()
	assert.False(t, ok)
}
