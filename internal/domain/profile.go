package domain

import "time"

// Role enumerates operator roles stored on a profile.
type Role string

const (
	RoleGlobalAdmin      Role = "global_admin"
	RoleAdmin            Role = "admin" // legacy alias of global_admin
	RoleMaintenanceAdmin Role = "maintenance_admin"
	RoleElectricalAdmin  Role = "electrical_admin"
	RoleUser             Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleGlobalAdmin, RoleAdmin, RoleMaintenanceAdmin, RoleElectricalAdmin, RoleUser:
		return true
	}
	return false
}

// Profile mirrors the identity provider's user with application attributes.
type Profile struct {
	ID           string
	Email        string
	FullName     string
	Role         Role
	DepartmentID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
