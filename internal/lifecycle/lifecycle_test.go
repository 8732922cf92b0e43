package lifecycle

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

// fakeNotifier records lifecycle events instead of dispatching them.
type fakeNotifier struct {
	created []string
	changes []statusChange
	fail    error
}

type statusChange struct {
	bugID string
	prev  models.BugStatus
	next  models.BugStatus
	actor string
}

func (n *fakeNotifier) BugCreated(ctx context.Context, b *models.Bug) error {
	n.created = append(n.created, b.ID)
	return n.fail
}

func (n *fakeNotifier) LifecycleChanged(ctx context.Context, b *models.Bug, prev, next models.BugStatus, actor *models.User) error {
	n.changes = append(n.changes, statusChange{bugID: b.ID, prev: prev, next: next, actor: actor.ID})
	return n.fail
}

type fixture struct {
	store    *store.SQLiteStore
	notifier *fakeNotifier
	svc      *Service

	admin   *models.User
	dev     *models.User
	dev2    *models.User
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

	f := &fixture{store: s, notifier: &fakeNotifier{}}
	f.svc = NewService(s, f.notifier, nil)

	f.admin = &models.User{Name: "admin", Email: "admin@example.com", Role: models.RoleAdmin}
	f.dev = &models.User{Name: "dev", Email: "dev@example.com", Role: models.RoleDeveloper}
	f.dev2 = &models.User{Name: "dev2", Email: "dev2@example.com", Role: models.RoleDeveloper}
	f.client = &models.User{Name: "client", Email: "client@example.com", Role: models.RoleClient}
	for _, u := range []*models.User{f.admin, f.dev, f.dev2, f.client} {
		require.NoError(t, s.CreateUser(ctx, u))
	}

	f.project = &models.Project{Name: "webapp"}
	require.NoError(t, s.CreateProject(ctx, f.project))

	return f
}

func (f *fixture) report(t *testing.T, actor *models.User, p ReportParams) *models.Bug {
	t.Helper()
	if p.ProjectID == "" {
		p.ProjectID = f.project.ID
	}
	if p.Title == "" {
		p.Title = "login broken"
	}
	b, err := f.svc.Report(context.Background(), p, actor)
	require.NoError(t, err)
	return b
}

// --- Report ---

func TestReport_ClientGetsDefaults(t *testing.T) {
	f := newFixture(t)

	b := f.report(t, f.client, ReportParams{
		Priority: models.BugPriorityCritical,
		Type:     models.BugTypeSecurity,
	})

	assert.Equal(t, models.BugStatusOpen, b.Status)
	assert.Equal(t, models.BugPriorityLow, b.Priority, "non-admin priority input is ignored")
	assert.Equal(t, models.BugTypeOther, b.Type, "non-admin type input is ignored")
	assert.Equal(t, f.client.ID, b.ReportedBy)
	assert.Equal(t, []string{b.ID}, f.notifier.created)
}

func TestReport_AdminMaySetPriorityAndType(t *testing.T) {
	f := newFixture(t)

	b := f.report(t, f.admin, ReportParams{
		Priority:   models.BugPriorityHigh,
		Type:       models.BugTypeSecurity,
		AssignedTo: f.dev.ID,
	})

	assert.Equal(t, models.BugPriorityHigh, b.Priority)
	assert.Equal(t, models.BugTypeSecurity, b.Type)
	assert.Equal(t, f.dev.ID, b.AssignedTo)
}

func TestReport_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Report(ctx, ReportParams{ProjectID: f.project.ID}, f.client)
	assert.ErrorIs(t, err, ErrValidation, "missing title")

	_, err = f.svc.Report(ctx, ReportParams{Title: "x"}, f.client)
	assert.ErrorIs(t, err, ErrValidation, "missing project")

	_, err = f.svc.Report(ctx, ReportParams{Title: "x", ProjectID: "nope"}, f.client)
	assert.ErrorIs(t, err, ErrValidation, "unknown project")

	_, err = f.svc.Report(ctx, ReportParams{Title: "x", ProjectID: f.project.ID, AssignedTo: f.client.ID}, f.admin)
	assert.ErrorIs(t, err, ErrValidation, "client assignee")

	_, err = f.svc.Report(ctx, ReportParams{Title: "x", ProjectID: f.project.ID, Priority: "urgent"}, f.admin)
	assert.ErrorIs(t, err, ErrValidation, "bad priority")

	assert.Empty(t, f.notifier.created, "no notifications for rejected input")
}

func TestReport_NotifierFailureDoesNotFailCreation(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = assert.AnError

	b := f.report(t, f.client, ReportParams{})

	got, err := f.store.GetBug(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

// --- Transition ---

func TestTransition_StampsScheduleStartAndResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return started }

	b := f.report(t, f.client, ReportParams{})

	b, err := f.svc.Transition(ctx, b.ID, models.BugStatusInProgress, f.dev)
	require.NoError(t, err)
	assert.Equal(t, models.BugStatusInProgress, b.Status)
	require.NotNil(t, b.ScheduleStartAt)
	assert.True(t, b.ScheduleStartAt.Equal(started))
	assert.Nil(t, b.ResolvedAt)

	finished := started.Add(3 * time.Hour)
	f.svc.now = func() time.Time { return finished }

	b, err = f.svc.Transition(ctx, b.ID, models.BugStatusResolved, f.dev)
	require.NoError(t, err)
	require.NotNil(t, b.ResolvedAt)
	assert.True(t, b.ResolvedAt.Equal(finished))
	assert.True(t, b.ScheduleStartAt.Equal(started), "start stamp unchanged")
}

func TestTransition_StampsAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return first }

	b := f.report(t, f.client, ReportParams{})
	_, err := f.svc.Transition(ctx, b.ID, models.BugStatusInProgress, f.dev)
	require.NoError(t, err)

	// Bounce back to open and into in_progress again later.
	later := first.Add(48 * time.Hour)
	f.svc.now = func() time.Time { return later }

	_, err = f.svc.Transition(ctx, b.ID, models.BugStatusOpen, f.dev)
	require.NoError(t, err)
	b, err = f.svc.Transition(ctx, b.ID, models.BugStatusInProgress, f.dev)
	require.NoError(t, err)

	require.NotNil(t, b.ScheduleStartAt)
	assert.True(t, b.ScheduleStartAt.Equal(first), "re-entry keeps the original stamp")
}

func TestTransition_NoOpDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.report(t, f.client, ReportParams{})

	got, err := f.svc.Transition(ctx, b.ID, models.BugStatusOpen, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.BugStatusOpen, got.Status)
	assert.Empty(t, f.notifier.changes)
	assert.Empty(t, got.AssignedTo, "no-op does not auto-assign")
}

func TestTransition_AutoAssignsDeveloper(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.report(t, f.client, ReportParams{})

	got, err := f.svc.Transition(ctx, b.ID, models.BugStatusInProgress, f.dev)
	require.NoError(t, err)
	assert.Equal(t, f.dev.ID, got.AssignedTo)

	// Another developer can no longer move it.
	_, err = f.svc.Transition(ctx, b.ID, models.BugStatusResolved, f.dev2)
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestTransition_AdminDoesNotAutoAssign(t *testing.T) {
	f := newFixture(t)

	b := f.report(t, f.client, ReportParams{})

	got, err := f.svc.Transition(context.Background(), b.ID, models.BugStatusInProgress, f.admin)
	require.NoError(t, err)
	assert.Empty(t, got.AssignedTo)
}

func TestTransition_ClientNotAllowed(t *testing.T) {
	f := newFixture(t)

	b := f.report(t, f.client, ReportParams{})

	_, err := f.svc.Transition(context.Background(), b.ID, models.BugStatusInProgress, f.client)
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.Empty(t, f.notifier.changes)
}

func TestTransition_AdminMayMoveAssignedBug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.report(t, f.admin, ReportParams{AssignedTo: f.dev.ID})

	got, err := f.svc.Transition(ctx, b.ID, models.BugStatusClosed, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.BugStatusClosed, got.Status)
	assert.Equal(t, f.dev.ID, got.AssignedTo, "admin move keeps the assignee")
}

func TestTransition_InvalidStatus(t *testing.T) {
	f := newFixture(t)

	b := f.report(t, f.client, ReportParams{})

	_, err := f.svc.Transition(context.Background(), b.ID, models.BugStatus("pending"), f.admin)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestTransition_UnknownBug(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), "nope", models.BugStatusClosed, f.admin)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransition_NotifiesWithPrevAndNext(t *testing.T) {
	f := newFixture(t)

	b := f.report(t, f.client, ReportParams{})

	_, err := f.svc.Transition(context.Background(), b.ID, models.BugStatusInProgress, f.dev)
	require.NoError(t, err)

	require.Len(t, f.notifier.changes, 1)
	change := f.notifier.changes[0]
	assert.Equal(t, b.ID, change.bugID)
	assert.Equal(t, models.BugStatusOpen, change.prev)
	assert.Equal(t, models.BugStatusInProgress, change.next)
	assert.Equal(t, f.dev.ID, change.actor)
}

func TestTransition_NotifierFailureDoesNotFailMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.report(t, f.client, ReportParams{})
	f.notifier.fail = assert.AnError

	_, err := f.svc.Transition(ctx, b.ID, models.BugStatusInProgress, f.dev)
	require.NoError(t, err)

	got, err := f.store.GetBug(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BugStatusInProgress, got.Status)
}
