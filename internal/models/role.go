package models

type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// rolePrecedence lists roles from strongest to weakest.
var rolePrecedence = []Role{RoleAdmin, RoleOrganizer, RoleAttendee}

func ParseRole(s string) (Role, bool) {
	for _, r := range rolePrecedence {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// RoleSet holds distinct roles in precedence order.
type RoleSet []Role

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.With(r)
	}
	return s
}

func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Intersects reports whether any of required is held. No required roles means no access.
func (s RoleSet) Intersects(required ...Role) bool {
	for _, r := range required {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// With returns the set plus role, keeping precedence order.
func (s RoleSet) With(role Role) RoleSet {
	if s.Has(role) {
		return s
	}
	out := make(RoleSet, 0, len(s)+1)
	for _, r := range rolePrecedence {
		if r == role || s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) Without(role Role) RoleSet {
	out := make(RoleSet, 0, len(s))
	for _, r := range s {
		if r != role {
			out = append(out, r)
		}
	}
	return out
}

// Primary is the strongest held role; attendee for an empty set.
func (s RoleSet) Primary() Role {
	for _, r := range rolePrecedence {
		if s.Has(r) {
			return r
		}
	}
	return RoleAttendee
}

func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}
