package models

import "fmt"

// Role is the closed set of principals known to the workflow. Values match
// users.role_id.
type Role int

const (
	RoleAuthor Role = iota + 1
	RoleReviewer
	RoleEditor
	RoleLayoutEditor
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAuthor:
		return "AUTHOR"
	case RoleReviewer:
		return "REVIEWER"
	case RoleEditor:
		return "EDITOR"
	case RoleLayoutEditor:
		return "LAYOUT_EDITOR"
	case RoleAdmin:
		return "ADMIN"
	}
	return fmt.Sprintf("ROLE(%d)", int(r))
}

func (r Role) Valid() bool {
	return r >= RoleAuthor && r <= RoleAdmin
}

// Actor is the authenticated principal performing an operation. ID zero
// denotes the system itself.
type Actor struct {
	ID   uint `json:"id"`
	Role Role `json:"role"`
}

// SystemActor is used by background jobs.
var SystemActor = Actor{ID: 0, Role: RoleAdmin}

// IsSystem reports whether the actor is the system principal.
func (a Actor) IsSystem() bool {
	return a.ID == 0
}
