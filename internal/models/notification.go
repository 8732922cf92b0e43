package models

import "time"

// Notification is a persisted, user-addressed message. Rows are created
// only by the dispatcher; the recipient may mark them read, nothing else
// updates them.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	IsRead    bool
	ReadAt    *time.Time
	CreatedAt time.Time
}
