package service

import "strings"

// Session roles.
const (
	RoleEducator = "educator"
	RoleStudent  = "student"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller as supplied by the session middleware.
type Actor struct {
	Name  string
	Email string
	Role  string
}

// IsEducator reports whether the actor may author and review problems.
func (a Actor) IsEducator() bool {
	switch strings.ToLower(strings.TrimSpace(a.Role)) {
	case RoleEducator, RoleAdmin, "teacher":
		return true
	}
	return false
}
