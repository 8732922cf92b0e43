// Package overdue implements the periodic sweep that flags bugs past
// their deadline. It is intended to run from a scheduler (cron invoking
// `bugtrack sweep`), not inside a request.
package overdue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bugtrackhq/bugtrack/internal/models"
	"github.com/bugtrackhq/bugtrack/internal/store"
)

// DefaultCooldown is the minimum gap between repeated overdue alerts for
// the same bug.
const DefaultCooldown = 24 * time.Hour

// Notifier is the dispatch side of overdue events. Satisfied by
// *notify.Dispatcher.
type Notifier interface {
	BugOverdue(ctx context.Context, b *models.Bug) error
}

// Report summarizes one sweep run.
type Report struct {
	Scanned  int `json:"scanned"`
	Notified int `json:"notified"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Scanner detects overdue bugs and triggers notifications.
type Scanner struct {
	store    store.Store
	notifier Notifier
	log      *slog.Logger
	cooldown time.Duration

	now func() time.Time // replaceable in tests
}

// NewScanner creates a Scanner. A non-positive cooldown falls back to
// DefaultCooldown, a nil logger to slog.Default.
func NewScanner(s store.Store, n Notifier, log *slog.Logger, cooldown time.Duration) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Scanner{store: s, notifier: n, log: log, cooldown: cooldown, now: time.Now}
}

// Run sweeps all overdue candidates once. Candidates are processed
// independently: a failure on one bug is counted and logged, and the
// sweep continues. Only the initial candidate query can fail the run.
//
// The cooldown stamp is written after the notification sends and is not
// transactional with them; a crash in between can duplicate an alert on
// the next run. The stamp is written even when the bug has no assignee
// or reporter to notify.
func (sc *Scanner) Run(ctx context.Context) (*Report, error) {
	now := sc.now().UTC()

	candidates, err := sc.store.ListOverdueBugs(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue bugs: %w", err)
	}

	report := &Report{Scanned: len(candidates)}
	for _, b := range candidates {
		if b.OverdueNotifiedAt != nil && now.Sub(*b.OverdueNotifiedAt) < sc.cooldown {
			report.Skipped++
			continue
		}

		if err := sc.notifier.BugOverdue(ctx, b); err != nil {
			report.Failed++
			sc.log.Error("overdue notification failed",
				"bug", b.ID, "ticket", b.TicketNumber, "error", err)
			continue
		}

		stamp := now
		b.OverdueNotifiedAt = &stamp
		if err := sc.store.UpdateBug(ctx, b); err != nil {
			report.Failed++
			sc.log.Error("stamp overdue_notified_at failed",
				"bug", b.ID, "ticket", b.TicketNumber, "error", err)
			continue
		}

		report.Notified++
		sc.log.Info("overdue alert sent",
			"bug", b.ID, "ticket", b.TicketNumber, "due_at", b.DueAt)
	}

	return report, nil
}
