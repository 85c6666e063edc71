package auth

import "github.com/greatlakes/greenhouse-tickets/internal/repository"

// TicketScope builds the visibility clause for ticket listings.
// Global admins see everything; everyone else sees tickets assigned to them
// plus tickets of their own department.
func TicketScope(c Caller) repository.Scope {
	if IsGlobalAdmin(c.Role) {
		return repository.Scope{All: true}
	}
	scope := repository.Scope{}
	if c.HasDepartment() {
		dept := *c.DepartmentID
		scope.DepartmentID = &dept
	}
	if c.ID != "" {
		self := c.ID
		scope.SelfID = &self
	}
	return scope
}

// DepartmentScope limits the department directory. Department admins only
// see their own department; everyone else sees the full list so they can
// file tickets against any department.
func DepartmentScope(c Caller) repository.Scope {
	if IsDepartmentAdmin(c.Role) {
		if !c.HasDepartment() {
			return repository.Scope{}
		}
		dept := *c.DepartmentID
		return repository.Scope{DepartmentID: &dept}
	}
	return repository.Scope{All: true}
}

// ProfileScope limits the profile directory.
func ProfileScope(c Caller) repository.Scope {
	if IsGlobalAdmin(c.Role) {
		return repository.Scope{All: true}
	}
	scope := repository.Scope{}
	if c.HasDepartment() {
		dept := *c.DepartmentID
		scope.DepartmentID = &dept
	}
	if !IsDepartmentAdmin(c.Role) && c.ID != "" {
		self := c.ID
		scope.SelfID = &self
	}
	return scope
}
