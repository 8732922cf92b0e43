// Package notify creates persisted notification records and forwards
// them, best effort, to the WhatsApp gateway. The database row is the
// source of truth for the user-visible record; external delivery is
// at-most-once and its outcome never changes what the caller sees.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bugtrackhq/bugtrack/internal/models"
	"github.com/bugtrackhq/bugtrack/internal/store"
	"github.com/bugtrackhq/bugtrack/internal/wagate"
)

// DefaultSendTimeout bounds the external send so a slow gateway cannot
// stall the request thread.
const DefaultSendTimeout = 5 * time.Second

// Dispatcher persists notifications and attempts external delivery.
type Dispatcher struct {
	store       store.Store
	gateway     wagate.Gateway
	log         *slog.Logger
	sendTimeout time.Duration
}

// New creates a Dispatcher. A nil logger falls back to slog.Default and
// a non-positive timeout to DefaultSendTimeout.
func New(s store.Store, gw wagate.Gateway, log *slog.Logger, sendTimeout time.Duration) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{store: s, gateway: gw, log: log, sendTimeout: sendTimeout}
}

// Notify persists a Notification row for the recipient, then attempts a
// best-effort WhatsApp send when the recipient has a phone number. The
// returned error reflects only the database write; a failed or skipped
// send is logged and swallowed.
func (d *Dispatcher) Notify(ctx context.Context, recipient *models.User, title, message string) error {
	n := &models.Notification{
		UserID:  recipient.ID,
		Title:   title,
		Message: message,
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	if recipient.Phone == "" {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	result := d.gateway.Send(sendCtx, recipient.Phone, title+"\n\n"+message)
	if !result.Accepted {
		d.log.Warn("whatsapp send not accepted",
			"user", recipient.ID, "reason", result.Reason)
	}
	return nil
}

// notifyID resolves a user id and notifies them. Missing users are
// reported as errors so fan-out callers can log and continue.
func (d *Dispatcher) notifyID(ctx context.Context, userID, title, message string) error {
	u, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", userID, err)
	}
	return d.Notify(ctx, u, title, message)
}

// BugCreated applies the creation notification policy:
//   - assignee (when present) gets a new-assignment message
//   - reporter gets a report-received message
//   - when the reporter is a client, every admin gets a new-bug message
//
// Admin-created bugs do not fan out to admins; only client-originated
// reports do. Per-recipient failures are collected, not short-circuited.
func (d *Dispatcher) BugCreated(ctx context.Context, b *models.Bug) error {
	reporter, err := d.store.GetUser(ctx, b.ReportedBy)
	if err != nil {
		return fmt.Errorf("resolve reporter: %w", err)
	}

	var errs []error

	if b.AssignedTo != "" {
		if err := d.notifyID(ctx, b.AssignedTo,
			"Penugasan Baru",
			fmt.Sprintf("Anda ditugaskan menangani laporan %s: %s", b.TicketNumber, b.Title),
		); err != nil {
			errs = append(errs, err)
		}
	}

	if err := d.Notify(ctx, reporter,
		"Laporan Diterima",
		fmt.Sprintf("Laporan %s (%s) telah diterima dan akan segera ditindaklanjuti.", b.TicketNumber, b.Title),
	); err != nil {
		errs = append(errs, err)
	}

	if reporter.Role == models.RoleClient {
		admins, err := d.store.ListUsers(ctx, models.RoleAdmin)
		if err != nil {
			errs = append(errs, fmt.Errorf("list admins: %w", err))
		}
		for _, admin := range admins {
			if err := d.Notify(ctx, admin,
				"Laporan Baru dari Klien",
				fmt.Sprintf("%s melaporkan bug baru %s: %s", reporter.Name, b.TicketNumber, b.Title),
			); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// LifecycleChanged applies the lifecycle notification policy for a
// transition from prev to next performed by actor. All messages go to
// the reporter.
func (d *Dispatcher) LifecycleChanged(ctx context.Context, b *models.Bug, prev, next models.BugStatus, actor *models.User) error {
	switch next {
	case models.BugStatusResolved:
		if b.ResolvedOnTime() {
			return d.notifyID(ctx, b.ReportedBy,
				"Laporan Selesai Tepat Waktu",
				fmt.Sprintf("Laporan %s telah diselesaikan sebelum tenggat waktu.", b.TicketNumber))
		}
		return d.notifyID(ctx, b.ReportedBy,
			"Laporan Selesai",
			fmt.Sprintf("Laporan %s telah diselesaikan.", b.TicketNumber))

	case models.BugStatusOpen, models.BugStatusInProgress:
		return d.notifyID(ctx, b.ReportedBy,
			"Status Laporan Diperbarui",
			fmt.Sprintf("Status laporan %s kini %s.", b.TicketNumber, next.Label()))

	case models.BugStatusClosed:
		// Only an admin-initiated close notifies the reporter. A close by
		// the assigned developer stays silent.
		if actor != nil && actor.Role == models.RoleAdmin {
			return d.notifyID(ctx, b.ReportedBy,
				"Laporan Ditutup",
				fmt.Sprintf("Laporan %s telah %s.", b.TicketNumber, models.BugStatusClosed.Label()))
		}
		return nil
	}
	return nil
}

// BugOverdue applies the overdue notification policy: the assignee
// (when present) is told the deadline was missed, the reporter gets an
// apology. Per-recipient failures are collected so the cooldown stamp
// can still be written by the caller.
func (d *Dispatcher) BugOverdue(ctx context.Context, b *models.Bug) error {
	var errs []error

	if b.AssignedTo != "" {
		due := ""
		if b.DueAt != nil {
			due = b.DueAt.Format("2006-01-02 15:04")
		}
		if err := d.notifyID(ctx, b.AssignedTo,
			"Tenggat Terlewati",
			fmt.Sprintf("Laporan %s melewati tenggat %s. Mohon segera ditindaklanjuti.", b.TicketNumber, due),
		); err != nil {
			errs = append(errs, err)
		}
	}

	if b.ReportedBy != "" {
		if err := d.notifyID(ctx, b.ReportedBy,
			"Mohon Maaf atas Keterlambatan",
			fmt.Sprintf("Penanganan laporan %s melewati tenggat waktu. Tim kami sedang menindaklanjutinya.", b.TicketNumber),
		); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
