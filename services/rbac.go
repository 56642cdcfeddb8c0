package services

import (
	"strings"

	"editorial-workflow-api/models"
)

// Capability is a permission the workflow checks before mutating anything.
type Capability int

const (
	CapSubmit Capability = iota + 1
	CapReview
	CapDecide
	CapLayout
	CapAdmin
)

func (c Capability) String() string {
	switch c {
	case CapSubmit:
		return "submit"
	case CapReview:
		return "review"
	case CapDecide:
		return "decide"
	case CapLayout:
		return "layout"
	case CapAdmin:
		return "admin"
	}
	return "unknown"
}

func CanSubmit(role models.Role) bool {
	switch role {
	case models.RoleAuthor, models.RoleAdmin:
		return true
	case models.RoleReviewer, models.RoleEditor, models.RoleLayoutEditor:
		return false
	}
	return false
}

func CanReview(role models.Role) bool {
	switch role {
	case models.RoleReviewer, models.RoleAdmin:
		return true
	case models.RoleAuthor, models.RoleEditor, models.RoleLayoutEditor:
		return false
	}
	return false
}

func CanDecide(role models.Role) bool {
	switch role {
	case models.RoleEditor, models.RoleAdmin:
		return true
	case models.RoleAuthor, models.RoleReviewer, models.RoleLayoutEditor:
		return false
	}
	return false
}

func CanLayout(role models.Role) bool {
	switch role {
	case models.RoleLayoutEditor, models.RoleAdmin:
		return true
	case models.RoleAuthor, models.RoleReviewer, models.RoleEditor:
		return false
	}
	return false
}

func CanAdmin(role models.Role) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleAuthor, models.RoleReviewer, models.RoleEditor, models.RoleLayoutEditor:
		return false
	}
	return false
}

// Allows evaluates the capability predicate for role.
func (c Capability) Allows(role models.Role) bool {
	switch c {
	case CapSubmit:
		return CanSubmit(role)
	case CapReview:
		return CanReview(role)
	case CapDecide:
		return CanDecide(role)
	case CapLayout:
		return CanLayout(role)
	case CapAdmin:
		return CanAdmin(role)
	}
	return false
}

// HasAny reports whether role holds at least one of caps.
func HasAny(role models.Role, caps ...Capability) bool {
	for _, c := range caps {
		if c.Allows(role) {
			return true
		}
	}
	return false
}

func capabilityNames(caps []Capability) string {
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, c.String())
	}
	return strings.Join(names, "|")
}
