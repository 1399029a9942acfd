// Package authz implements role resolution and the access gate that
// authorizes every mutating action in SimpleFleet.
package authz

// Role represents a driver's authorization tier.
type Role string

const (
	RoleUser         Role = "user"
	RolePendingAdmin Role = "pending_admin"
	RoleAdmin        Role = "admin"
	RoleMasterAdmin  Role = "master_admin"
)

// Roles lists all valid roles, lowest tier first.
var Roles = []Role{RoleUser, RolePendingAdmin, RoleAdmin, RoleMasterAdmin}

// Valid reports whether r is one of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePendingAdmin, RoleAdmin, RoleMasterAdmin:
		return true
	}
	return false
}

// HasAdminPrivilege reports whether r grants admin-tier access.
// pending_admin does not count until approved.
func (r Role) HasAdminPrivilege() bool {
	return r == RoleAdmin || r == RoleMasterAdmin
}

// ParseRole validates a role string; the empty string parses to an
// empty Role (absent source), anything else must be a member of the set.
func ParseRole(s string) (Role, bool) {
	if s == "" {
		return "", true
	}
	r := Role(s)
	return r, r.Valid()
}
