package auth

import "github.com/greatlakes/greenhouse-tickets/internal/domain"

// Caller is the subset of a profile the policy needs.
type Caller struct {
	ID           string
	Role         domain.Role
	DepartmentID *string
}

// CallerFromProfile projects a profile into a policy caller.
func CallerFromProfile(p *domain.Profile) Caller {
	if p == nil {
		return Caller{}
	}
	return Caller{ID: p.ID, Role: p.Role, DepartmentID: p.DepartmentID}
}

// IsGlobalAdmin reports whether the role has authority over everything.
func IsGlobalAdmin(role domain.Role) bool {
	return role == domain.RoleGlobalAdmin || role == domain.RoleAdmin
}

// IsDepartmentAdmin reports whether the role administers a single department.
func IsDepartmentAdmin(role domain.Role) bool {
	return role == domain.RoleMaintenanceAdmin || role == domain.RoleElectricalAdmin
}

// IsAnyAdmin reports whether the role is global or department admin.
func IsAnyAdmin(role domain.Role) bool {
	return IsGlobalAdmin(role) || IsDepartmentAdmin(role)
}

// HasDepartment reports whether the caller belongs to a department.
func (c Caller) HasDepartment() bool {
	return c.DepartmentID != nil && *c.DepartmentID != ""
}

// InDepartment reports whether the caller belongs to departmentID.
func (c Caller) InDepartment(departmentID string) bool {
	return c.HasDepartment() && *c.DepartmentID == departmentID
}

// CanManageDepartment reports whether the caller administers departmentID.
// A department admin without a department administers nothing.
func CanManageDepartment(c Caller, departmentID string) bool {
	if IsGlobalAdmin(c.Role) {
		return true
	}
	return IsDepartmentAdmin(c.Role) && c.InDepartment(departmentID)
}

// CanViewTicket reports whether the caller may see the ticket.
func CanViewTicket(c Caller, t *domain.Ticket) bool {
	if t == nil {
		return false
	}
	if IsGlobalAdmin(c.Role) {
		return true
	}
	if c.ID != "" && t.IsAssignedTo(c.ID) {
		return true
	}
	return c.InDepartment(t.DepartmentID)
}

// CanEditTicket reports whether the caller may change status, priority or
// description and comment on the ticket.
func CanEditTicket(c Caller, t *domain.Ticket) bool {
	return CanViewTicket(c, t)
}

// CanDeleteTicket reports whether the caller may delete the ticket.
func CanDeleteTicket(c Caller, t *domain.Ticket) bool {
	return t != nil && CanManageDepartment(c, t.DepartmentID)
}

// CanReassignTicket reports whether the caller may change the assignee.
func CanReassignTicket(c Caller, t *domain.Ticket) bool {
	return t != nil && CanManageDepartment(c, t.DepartmentID)
}

// CanManageUser reports whether the caller may change or delete target.
// Department admins only manage plain users of their own department.
func CanManageUser(c Caller, target *domain.Profile) bool {
	if target == nil {
		return false
	}
	if IsGlobalAdmin(c.Role) {
		return true
	}
	if !IsDepartmentAdmin(c.Role) || target.Role != domain.RoleUser {
		return false
	}
	return target.DepartmentID != nil && c.InDepartment(*target.DepartmentID)
}

// CanAssignRole reports whether the caller may grant role.
func CanAssignRole(c Caller, role domain.Role) bool {
	if !role.Valid() {
		return false
	}
	if IsGlobalAdmin(c.Role) {
		return true
	}
	if !IsDepartmentAdmin(c.Role) || !c.HasDepartment() {
		return false
	}
	return role == domain.RoleUser || role == c.Role
}

// CanDeleteComment reports whether the caller may delete comment. Only the
// author may, and only while they can still see the ticket.
func CanDeleteComment(c Caller, t *domain.Ticket, comment *domain.Comment) bool {
	if comment == nil || c.ID == "" {
		return false
	}
	return comment.IsAuthoredBy(c.ID) && CanViewTicket(c, t)
}
