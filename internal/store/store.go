package store

import (
	"context"
	"errors"
	"time"

	"github.com/bugtrackhq/bugtrack/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// BugListFilter specifies filters for listing bugs.
type BugListFilter struct {
	ProjectID  string
	Status     models.BugStatus
	Priority   models.BugPriority
	Type       models.BugType
	AssignedTo string
	ReportedBy string
}

// Store defines the persistence interface for bugtrack.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, role models.Role) ([]*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id string) error

	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Bugs
	CreateBug(ctx context.Context, b *models.Bug) error
	GetBug(ctx context.Context, id string) (*models.Bug, error)
	GetBugByTicket(ctx context.Context, ticket string) (*models.Bug, error)
	ListBugs(ctx context.Context, filter BugListFilter) ([]*models.Bug, error)
	ListOverdueBugs(ctx context.Context, now time.Time) ([]*models.Bug, error)
	UpdateBug(ctx context.Context, b *models.Bug) error
	DeleteBug(ctx context.Context, id string) error

	// Attachments
	AddAttachment(ctx context.Context, a *models.Attachment) error
	ListAttachments(ctx context.Context, bugID string) ([]*models.Attachment, error)

	// Notifications
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
