// Package presence tracks which users are currently online, as a keyed
// expiring-state store injected into the API server rather than an
// ambient global cache.
package presence

import (
	"sync"
	"time"
)

// DefaultTTL is how long a user counts as online after their last
// observed activity.
const DefaultTTL = 5 * time.Minute

// Tracker is a TTL map of user id to last activity time.
type Tracker struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time
	ttl      time.Duration

	now func() time.Time // replaceable in tests
}

// NewTracker creates a Tracker. A non-positive ttl falls back to
// DefaultTTL.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		lastSeen: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Touch records activity for the user.
func (t *Tracker) Touch(userID string) {
	t.mu.Lock()
	t.lastSeen[userID] = t.now()
	t.mu.Unlock()
}

// Online reports whether the user was active within the TTL.
func (t *Tracker) Online(userID string) bool {
	t.mu.RLock()
	seen, ok := t.lastSeen[userID]
	t.mu.RUnlock()
	return ok && t.now().Sub(seen) < t.ttl
}

// Snapshot returns the ids of all currently online users and prunes
// expired entries while it holds the lock.
func (t *Tracker) Snapshot() []string {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	var online []string
	for id, seen := range t.lastSeen {
		if now.Sub(seen) < t.ttl {
			online = append(online, id)
		} else {
			delete(t.lastSeen, id)
		}
	}
	return online
}
