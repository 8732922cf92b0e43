package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtrackhq/bugtrack/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: role}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedProject(t *testing.T, s *SQLiteStore, name string) *models.Project {
	t.Helper()
	p := &models.Project{Name: name}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func seedBug(t *testing.T, s *SQLiteStore, project *models.Project, reporter *models.User) *models.Bug {
	t.Helper()
	b := &models.Bug{
		ProjectID:  project.ID,
		Title:      "login broken",
		Status:     models.BugStatusOpen,
		Priority:   models.BugPriorityLow,
		Type:       models.BugTypeError,
		ReportedBy: reporter.ID,
	}
	require.NoError(t, s.CreateBug(context.Background(), b))
	return b
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)

	// Running migrate again should be a no-op
	err := s.Migrate(context.Background())
	assert.NoError(t, err)
}

func TestNewTicketNumber(t *testing.T) {
	a := NewTicketNumber()
	b := NewTicketNumber()
	assert.True(t, strings.HasPrefix(a, "BT-"))
	assert.NotEqual(t, a, b)
}

// --- Users ---

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Name: "Dewi", Email: "dewi@example.com", Role: models.RoleDeveloper, Phone: "+6281234567890"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dewi", got.Name)
	assert.Equal(t, models.RoleDeveloper, got.Role)
	assert.Equal(t, "+6281234567890", got.Phone)

	got, err = s.GetUserByEmail(ctx, "dewi@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got.Phone = "+6289876543210"
	require.NoError(t, s.UpdateUser(ctx, got))
	got2, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "+6289876543210", got2.Phone)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	_, err = s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUser_DefaultsToClient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := &models.User{Name: "Anon", Email: "anon@example.com"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, models.RoleClient, u.Role)
}

func TestListUsers_ByRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "admin1", models.RoleAdmin)
	seedUser(t, s, "admin2", models.RoleAdmin)
	seedUser(t, s, "dev", models.RoleDeveloper)

	admins, err := s.ListUsers(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	all, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// --- Bugs ---

func TestBugCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reporter := seedUser(t, s, "client", models.RoleClient)
	project := seedProject(t, s, "webapp")

	b := seedBug(t, s, project, reporter)
	assert.NotEmpty(t, b.ID)
	assert.True(t, strings.HasPrefix(b.TicketNumber, "BT-"))
	assert.False(t, b.CreatedAt.IsZero())

	got, err := s.GetBug(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "login broken", got.Title)
	assert.Equal(t, models.BugStatusOpen, got.Status)
	assert.Nil(t, got.ScheduleStartAt)
	assert.Nil(t, got.ResolvedAt)
	assert.Nil(t, got.OverdueNotifiedAt)

	got, err = s.GetBugByTicket(ctx, b.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	now := time.Now().UTC().Truncate(time.Second)
	got.Status = models.BugStatusInProgress
	got.ScheduleStartAt = &now
	require.NoError(t, s.UpdateBug(ctx, got))

	got2, err := s.GetBug(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BugStatusInProgress, got2.Status)
	require.NotNil(t, got2.ScheduleStartAt)
	assert.True(t, got2.ScheduleStartAt.Equal(now))

	_, err = s.GetBug(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBugs_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reporter := seedUser(t, s, "client", models.RoleClient)
	dev := seedUser(t, s, "dev", models.RoleDeveloper)
	project := seedProject(t, s, "webapp")

	open := seedBug(t, s, project, reporter)
	assigned := seedBug(t, s, project, reporter)
	assigned.AssignedTo = dev.ID
	assigned.Status = models.BugStatusInProgress
	require.NoError(t, s.UpdateBug(ctx, assigned))

	byStatus, err := s.ListBugs(ctx, BugListFilter{Status: models.BugStatusOpen})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, open.ID, byStatus[0].ID)

	byAssignee, err := s.ListBugs(ctx, BugListFilter{AssignedTo: dev.ID})
	require.NoError(t, err)
	require.Len(t, byAssignee, 1)
	assert.Equal(t, assigned.ID, byAssignee[0].ID)

	byReporter, err := s.ListBugs(ctx, BugListFilter{ReportedBy: reporter.ID})
	require.NoError(t, err)
	assert.Len(t, byReporter, 2)
}

func TestListOverdueBugs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reporter := seedUser(t, s, "client", models.RoleClient)
	project := seedProject(t, s, "webapp")
	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	future := now.Add(2 * time.Hour)

	overdue := seedBug(t, s, project, reporter)
	overdue.DueAt = &past
	require.NoError(t, s.UpdateBug(ctx, overdue))

	notDue := seedBug(t, s, project, reporter)
	notDue.DueAt = &future
	require.NoError(t, s.UpdateBug(ctx, notDue))

	noDeadline := seedBug(t, s, project, reporter)
	_ = noDeadline

	resolved := seedBug(t, s, project, reporter)
	resolved.DueAt = &past
	resolved.Status = models.BugStatusResolved
	require.NoError(t, s.UpdateBug(ctx, resolved))

	candidates, err := s.ListOverdueBugs(ctx, now)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, overdue.ID, candidates[0].ID)
}

func TestDeleteBug_CascadesAttachments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reporter := seedUser(t, s, "client", models.RoleClient)
	project := seedProject(t, s, "webapp")
	b := seedBug(t, s, project, reporter)

	a := &models.Attachment{BugID: b.ID, FileName: "screenshot.png", StorePath: "/blobs/x", Size: 1024}
	require.NoError(t, s.AddAttachment(ctx, a))

	attachments, err := s.ListAttachments(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, attachments, 1)

	require.NoError(t, s.DeleteBug(ctx, b.ID))

	_, err = s.GetBug(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	attachments, err = s.ListAttachments(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, attachments)
}

// --- Notifications ---

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "client", models.RoleClient)

	n1 := &models.Notification{UserID: u.ID, Title: "Laporan Diterima", Message: "..."}
	n2 := &models.Notification{UserID: u.ID, Title: "Status Laporan Diperbarui", Message: "..."}
	require.NoError(t, s.CreateNotification(ctx, n1))
	require.NoError(t, s.CreateNotification(ctx, n2))

	all, err := s.ListNotifications(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	count, err := s.CountUnreadNotifications(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.MarkNotificationRead(ctx, n1.ID, u.ID))

	unread, err := s.ListNotifications(ctx, u.ID, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, n2.ID, unread[0].ID)

	// Already read, and wrong-user guard
	err = s.MarkNotificationRead(ctx, n1.ID, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	err = s.MarkNotificationRead(ctx, n2.ID, "someone-else")
	assert.ErrorIs(t, err, ErrNotFound)
}
