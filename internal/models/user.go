package models

import "time"

// Role determines what a user may do in the tracker.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleClient    Role = "client"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDeveloper, RoleClient:
		return true
	}
	return false
}

// User is an actor in the system. Phone, when set, is an E.164-like
// number used as the WhatsApp delivery address.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	Phone     string
	CreatedAt time.Time
}

// Project groups bugs under one product or codebase.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}
