// Package lifecycle governs bug status transitions: who may move a bug,
// which timestamps get stamped, and which notifications fire as a side
// effect. Admin- and developer-initiated moves share one code path,
// parameterized by the acting user.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bugtrackhq/bugtrack/internal/models"
	"github.com/bugtrackhq/bugtrack/internal/store"
)

var (
	// ErrNotAllowed is returned when the actor is neither the bug's
	// assignee nor an admin. No state is changed.
	ErrNotAllowed = errors.New("actor is not allowed to move this bug")

	// ErrInvalidStatus is returned for unknown target status values.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrValidation is returned for bad creation input.
	ErrValidation = errors.New("validation failed")
)

// Notifier is the dispatch side of lifecycle events. Satisfied by
// *notify.Dispatcher.
type Notifier interface {
	BugCreated(ctx context.Context, b *models.Bug) error
	LifecycleChanged(ctx context.Context, b *models.Bug, prev, next models.BugStatus, actor *models.User) error
}

// Service implements bug creation and lifecycle transitions.
type Service struct {
	store    store.Store
	notifier Notifier
	log      *slog.Logger

	now func() time.Time // replaceable in tests
}

// NewService creates a lifecycle service. A nil logger falls back to
// slog.Default.
func NewService(s store.Store, n Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: s, notifier: n, log: log, now: time.Now}
}

// ReportParams carries creation input. Priority, Type, and Status are
// honored only for admin actors; everyone else gets server defaults.
type ReportParams struct {
	ProjectID   string
	Title       string
	Description string
	Priority    models.BugPriority
	Type        models.BugType
	AssignedTo  string
	DueAt       *time.Time
}

// Report creates a bug on behalf of actor and fires the creation
// notification policy. Non-admin reporters always get status=open,
// priority=low, type=other regardless of input.
func (s *Service) Report(ctx context.Context, p ReportParams, actor *models.User) (*models.Bug, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if p.ProjectID == "" {
		return nil, fmt.Errorf("%w: project_id is required", ErrValidation)
	}
	if _, err := s.store.GetProject(ctx, p.ProjectID); err != nil {
		return nil, fmt.Errorf("%w: project %s: %v", ErrValidation, p.ProjectID, err)
	}
	if p.AssignedTo != "" {
		assignee, err := s.store.GetUser(ctx, p.AssignedTo)
		if err != nil {
			return nil, fmt.Errorf("%w: assignee %s: %v", ErrValidation, p.AssignedTo, err)
		}
		if assignee.Role == models.RoleClient {
			return nil, fmt.Errorf("%w: cannot assign a bug to a client", ErrValidation)
		}
	}

	b := &models.Bug{
		ProjectID:   p.ProjectID,
		Title:       p.Title,
		Description: p.Description,
		Status:      models.BugStatusOpen,
		Priority:    models.BugPriorityLow,
		Type:        models.BugTypeOther,
		ReportedBy:  actor.ID,
		AssignedTo:  p.AssignedTo,
		DueAt:       p.DueAt,
	}

	if actor.Role == models.RoleAdmin {
		if p.Priority != "" {
			if !p.Priority.Valid() {
				return nil, fmt.Errorf("%w: priority %q", ErrValidation, p.Priority)
			}
			b.Priority = p.Priority
		}
		if p.Type != "" {
			if !p.Type.Valid() {
				return nil, fmt.Errorf("%w: type %q", ErrValidation, p.Type)
			}
			b.Type = p.Type
		}
	}

	if err := s.store.CreateBug(ctx, b); err != nil {
		return nil, err
	}

	// Notification outcome never fails the creation request.
	if err := s.notifier.BugCreated(ctx, b); err != nil {
		s.log.Warn("creation notifications incomplete", "bug", b.ID, "error", err)
	}

	return b, nil
}

// Transition moves a bug to the target status on behalf of actor.
//
// Rules:
//   - actor must be an admin, or a developer who is the assignee (or the
//     bug is unassigned, in which case the developer becomes the assignee)
//   - moving to the current status is a no-op: nothing is re-stamped and
//     no notification is re-sent
//   - first entry into in_progress stamps ScheduleStartAt, first entry
//     into resolved stamps ResolvedAt; both at most once
//   - status, timestamps, and assignee are persisted in one row update
func (s *Service) Transition(ctx context.Context, bugID string, target models.BugStatus, actor *models.User) (*models.Bug, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	b, err := s.store.GetBug(ctx, bugID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.Role == models.RoleAdmin:
	case actor.Role == models.RoleDeveloper && (b.AssignedTo == "" || b.AssignedTo == actor.ID):
	default:
		return nil, ErrNotAllowed
	}

	prev := b.Status
	if target == prev {
		return b, nil
	}

	if b.AssignedTo == "" && actor.Role == models.RoleDeveloper {
		b.AssignedTo = actor.ID
	}

	now := s.now().UTC()
	b.Status = target
	if target == models.BugStatusInProgress && b.ScheduleStartAt == nil {
		b.ScheduleStartAt = &now
	}
	if target == models.BugStatusResolved && b.ResolvedAt == nil {
		b.ResolvedAt = &now
	}

	if err := s.store.UpdateBug(ctx, b); err != nil {
		return nil, err
	}

	if err := s.notifier.LifecycleChanged(ctx, b, prev, target, actor); err != nil {
		s.log.Warn("lifecycle notification failed", "bug", b.ID, "from", prev, "to", target, "error", err)
	}

	return b, nil
}
