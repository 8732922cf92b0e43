package overdue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtrackhq/bugtrack/internal/models"
	"github.com/bugtrackhq/bugtrack/internal/store"
)

// fakeNotifier records overdue events and can fail for selected bugs.
type fakeNotifier struct {
	notified []string
	failFor  map[string]bool
}

func (n *fakeNotifier) BugOverdue(ctx context.Context, b *models.Bug) error {
	if n.failFor[b.ID] {
		return assert.AnError
	}
	n.notified = append(n.notified, b.ID)
	return nil
}

type fixture struct {
	store    *store.SQLiteStore
	notifier *fakeNotifier
	scanner  *Scanner

	client  *models.User
	project *models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	f := &fixture{store: s, notifier: &fakeNotifier{failFor: map[string]bool{}}}
	f.scanner = NewScanner(s, f.notifier, nil, DefaultCooldown)

	f.client = &models.User{Name: "client", Email: "client@example.com", Role: models.RoleClient}
	require.NoError(t, s.CreateUser(ctx, f.client))
	f.project = &models.Project{Name: "webapp"}
	require.NoError(t, s.CreateProject(ctx, f.project))

	return f
}

func (f *fixture) seedBug(t *testing.T, due time.Time, status models.BugStatus) *models.Bug {
	t.Helper()
	b := &models.Bug{
		ProjectID:  f.project.ID,
		Title:      "login broken",
		Status:     status,
		Priority:   models.BugPriorityLow,
		Type:       models.BugTypeError,
		ReportedBy: f.client.ID,
		DueAt:      &due,
	}
	require.NoError(t, f.store.CreateBug(context.Background(), b))
	return b
}

func TestRun_NotifiesAndStamps(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	f.scanner.now = func() time.Time { return now }

	b := f.seedBug(t, now.Add(-2*time.Hour), models.BugStatusInProgress)

	report, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 1, Notified: 1}, report)
	assert.Equal(t, []string{b.ID}, f.notifier.notified)

	got, err := f.store.GetBug(context.Background(), b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OverdueNotifiedAt)
	assert.True(t, got.OverdueNotifiedAt.Equal(now))
}

func TestRun_CooldownSkipsRecentAlert(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	f.scanner.now = func() time.Time { return now }

	f.seedBug(t, now.Add(-48*time.Hour), models.BugStatusOpen)

	report, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notified)

	// A second run six hours later is inside the cooldown window.
	now = now.Add(6 * time.Hour)
	report, err = f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 1, Skipped: 1}, report)
	assert.Len(t, f.notifier.notified, 1)

	// Past the cooldown the alert repeats.
	now = now.Add(19 * time.Hour)
	report, err = f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 1, Notified: 1}, report)
	assert.Len(t, f.notifier.notified, 2)
}

func TestRun_IgnoresNonCandidates(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	f.scanner.now = func() time.Time { return now }

	f.seedBug(t, now.Add(2*time.Hour), models.BugStatusOpen)
	f.seedBug(t, now.Add(-2*time.Hour), models.BugStatusResolved)
	f.seedBug(t, now.Add(-2*time.Hour), models.BugStatusClosed)

	report, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Report{}, report)
	assert.Empty(t, f.notifier.notified)
}

func TestRun_FailureIsolatedPerBug(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	f.scanner.now = func() time.Time { return now }

	bad := f.seedBug(t, now.Add(-time.Hour), models.BugStatusOpen)
	good := f.seedBug(t, now.Add(-time.Hour), models.BugStatusOpen)
	f.notifier.failFor[bad.ID] = true

	report, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Report{Scanned: 2, Notified: 1, Failed: 1}, report)
	assert.Equal(t, []string{good.ID}, f.notifier.notified)

	// The failed bug keeps no stamp and is retried on the next run.
	got, err := f.store.GetBug(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Nil(t, got.OverdueNotifiedAt)

	f.notifier.failFor[bad.ID] = false
	report, err = f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notified)
	assert.Equal(t, 1, report.Skipped)
}

func TestRun_StampsBugWithoutRecipients(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	f.scanner.now = func() time.Time { return now }

	// Unassigned bug: notifier still runs (it handles the empty assignee)
	// and the cooldown stamp is written regardless.
	b := f.seedBug(t, now.Add(-time.Hour), models.BugStatusOpen)

	report, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notified)

	got, err := f.store.GetBug(context.Background(), b.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.OverdueNotifiedAt)
}
