package model

// Role is the authorization tier of an admin account.
type Role string

const (
	// RolePrincipal may approve, reject, suspend, unlock and delete other admins.
	RolePrincipal Role = "principal"
	// RoleAdmin is a regular back-office administrator.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RolePrincipal || r == RoleAdmin
}

// IsPrincipal reports whether r carries principal rights.
func (r Role) IsPrincipal() bool {
	return r == RolePrincipal
}

// Status is the lifecycle state of an admin account.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSuspended:
		return true
	}
	return false
}

// CanLogin reports whether an account in this status may authenticate.
func (s Status) CanLogin() bool {
	return s == StatusApproved
}
