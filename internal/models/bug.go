package models

import "time"

// BugStatus represents the lifecycle state of a bug.
type BugStatus string

const (
	BugStatusOpen       BugStatus = "open"
	BugStatusInProgress BugStatus = "in_progress"
	BugStatusResolved   BugStatus = "resolved"
	BugStatusClosed     BugStatus = "closed"
)

// Valid reports whether s is a known status value.
func (s BugStatus) Valid() bool {
	switch s {
	case BugStatusOpen, BugStatusInProgress, BugStatusResolved, BugStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status.
func (s BugStatus) Terminal() bool {
	return s == BugStatusResolved || s == BugStatusClosed
}

// Label returns the human-readable (Indonesian) label for a status,
// used in notification messages.
func (s BugStatus) Label() string {
	switch s {
	case BugStatusOpen:
		return "dibuka"
	case BugStatusInProgress:
		return "sedang ditangani"
	case BugStatusResolved:
		return "selesai"
	case BugStatusClosed:
		return "ditutup"
	}
	return string(s)
}

// BugPriority represents the urgency of a bug.
type BugPriority string

const (
	BugPriorityLow      BugPriority = "low"
	BugPriorityMedium   BugPriority = "medium"
	BugPriorityHigh     BugPriority = "high"
	BugPriorityCritical BugPriority = "critical"
)

// Valid reports whether p is a known priority value.
func (p BugPriority) Valid() bool {
	switch p {
	case BugPriorityLow, BugPriorityMedium, BugPriorityHigh, BugPriorityCritical:
		return true
	}
	return false
}

// BugType categorizes the kind of defect being reported.
type BugType string

const (
	BugTypeUI          BugType = "ui"
	BugTypePerformance BugType = "performance"
	BugTypeFeature     BugType = "feature"
	BugTypeSecurity    BugType = "security"
	BugTypeError       BugType = "error"
	BugTypeOther       BugType = "other"
)

// Valid reports whether t is a known bug type.
func (t BugType) Valid() bool {
	switch t {
	case BugTypeUI, BugTypePerformance, BugTypeFeature, BugTypeSecurity, BugTypeError, BugTypeOther:
		return true
	}
	return false
}

// Bug represents a reported defect tracked through its lifecycle.
type Bug struct {
	ID           string
	TicketNumber string // unique, human-readable (BT-xxxx)
	ProjectID    string
	Title        string
	Description  string
	Status       BugStatus
	Priority     BugPriority
	Type         BugType
	ReportedBy   string
	AssignedTo   string // empty = unassigned

	CreatedAt time.Time
	UpdatedAt time.Time

	// ScheduleStartAt is stamped once, on the first transition into
	// in_progress. ResolvedAt is stamped once, on the first transition
	// into resolved. OverdueNotifiedAt is touched only by the overdue
	// sweep, gated by its cooldown.
	ScheduleStartAt   *time.Time
	DueAt             *time.Time
	ResolvedAt        *time.Time
	OverdueNotifiedAt *time.Time
}

// Overdue reports whether the bug is past its deadline at the given time.
func (b *Bug) Overdue(now time.Time) bool {
	return !b.Status.Terminal() && b.DueAt != nil && b.DueAt.Before(now)
}

// ResolvedOnTime reports whether the bug was resolved at or before its
// deadline. False when either timestamp is missing.
func (b *Bug) ResolvedOnTime() bool {
	return b.DueAt != nil && b.ResolvedAt != nil && !b.ResolvedAt.After(*b.DueAt)
}

// Attachment is a file attached to a bug report. Blob storage itself is
// handled by an external collaborator; the record tracks metadata only.
type Attachment struct {
	ID        string
	BugID     string
	FileName  string
	StorePath string
	Size      int64
	CreatedAt time.Time
}
