package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

func dept(id string) *string { return &id }

var (
	globalAdmin = Caller{ID: "g", Role: domain.RoleGlobalAdmin}
	legacyAdmin = Caller{ID: "a", Role: domain.RoleAdmin}
	maintAdmin  = Caller{ID: "ma", Role: domain.RoleMaintenanceAdmin, DepartmentID: dept("maint")}
	orphanAdmin = Caller{ID: "oa", Role: domain.RoleElectricalAdmin}
	maintUser   = Caller{ID: "mu", Role: domain.RoleUser, DepartmentID: dept("maint")}
	elecUser    = Caller{ID: "eu", Role: domain.RoleUser, DepartmentID: dept("elec")}
)

func TestCanViewTicket(t *testing.T) {
	ticket := &domain.Ticket{ID: "t", DepartmentID: "maint"}
	assigned := &domain.Ticket{ID: "t2", DepartmentID: "maint", AssignedTo: dept("eu")}

	assert.True(t, CanViewTicket(globalAdmin, ticket))
	assert.True(t, CanViewTicket(legacyAdmin, ticket))
	assert.True(t, CanViewTicket(maintAdmin, ticket))
	assert.True(t, CanViewTicket(maintUser, ticket))
	assert.False(t, CanViewTicket(elecUser, ticket))
	assert.True(t, CanViewTicket(elecUser, assigned), "assignee sees the ticket outside their department")
	assert.False(t, CanViewTicket(orphanAdmin, ticket))
	assert.False(t, CanViewTicket(globalAdmin, nil))
}

func TestCanManageDepartment(t *testing.T) {
	assert.True(t, CanManageDepartment(globalAdmin, "anything"))
	assert.True(t, CanManageDepartment(maintAdmin, "maint"))
	assert.False(t, CanManageDepartment(maintAdmin, "elec"))
	assert.False(t, CanManageDepartment(maintUser, "maint"))
	assert.False(t, CanManageDepartment(orphanAdmin, ""), "department admin without a department administers nothing")
}

func TestDeleteAndReassignFollowDepartmentAuthority(t *testing.T) {
	ticket := &domain.Ticket{DepartmentID: "maint", AssignedTo: dept("mu")}
	assert.True(t, CanDeleteTicket(maintAdmin, ticket))
	assert.False(t, CanDeleteTicket(maintUser, ticket), "assignee cannot delete")
	assert.True(t, CanReassignTicket(globalAdmin, ticket))
	assert.False(t, CanReassignTicket(maintUser, ticket))
	assert.True(t, CanEditTicket(maintUser, ticket))
}

func TestCanManageUser(t *testing.T) {
	plain := &domain.Profile{ID: "p", Role: domain.RoleUser, DepartmentID: dept("maint")}
	peer := &domain.Profile{ID: "q", Role: domain.RoleMaintenanceAdmin, DepartmentID: dept("maint")}
	other := &domain.Profile{ID: "r", Role: domain.RoleUser, DepartmentID: dept("elec")}
	homeless := &domain.Profile{ID: "s", Role: domain.RoleUser}

	assert.True(t, CanManageUser(globalAdmin, peer))
	assert.True(t, CanManageUser(maintAdmin, plain))
	assert.False(t, CanManageUser(maintAdmin, peer))
	assert.False(t, CanManageUser(maintAdmin, other))
	assert.False(t, CanManageUser(maintAdmin, homeless))
	assert.False(t, CanManageUser(maintUser, plain))
}

func TestCanAssignRole(t *testing.T) {
	assert.True(t, CanAssignRole(globalAdmin, domain.RoleGlobalAdmin))
	assert.True(t, CanAssignRole(maintAdmin, domain.RoleUser))
	assert.True(t, CanAssignRole(maintAdmin, domain.RoleMaintenanceAdmin))
	assert.False(t, CanAssignRole(maintAdmin, domain.RoleElectricalAdmin))
	assert.False(t, CanAssignRole(maintAdmin, domain.RoleGlobalAdmin))
	assert.False(t, CanAssignRole(orphanAdmin, domain.RoleUser))
	assert.False(t, CanAssignRole(globalAdmin, domain.Role("root")))
}

func TestCanDeleteComment(t *testing.T) {
	ticket := &domain.Ticket{DepartmentID: "maint"}
	own := &domain.Comment{UserID: dept("mu")}
	emailed := &domain.Comment{}

	assert.True(t, CanDeleteComment(maintUser, ticket, own))
	assert.False(t, CanDeleteComment(maintAdmin, ticket, own))
	assert.False(t, CanDeleteComment(globalAdmin, ticket, own))
	assert.False(t, CanDeleteComment(maintUser, ticket, emailed))

	moved := &domain.Ticket{DepartmentID: "elec"}
	assert.False(t, CanDeleteComment(maintUser, moved, own), "author lost sight of the ticket")
}

func TestScopes(t *testing.T) {
	scope := TicketScope(maintUser)
	assert.False(t, scope.All)
	assert.Equal(t, "maint", *scope.DepartmentID)
	assert.Equal(t, "mu", *scope.SelfID)

	assert.True(t, TicketScope(legacyAdmin).All)

	orphan := TicketScope(Caller{ID: "x", Role: domain.RoleUser})
	assert.Nil(t, orphan.DepartmentID)
	assert.Equal(t, "x", *orphan.SelfID)

	assert.True(t, DepartmentScope(maintUser).All)
	assert.Equal(t, "maint", *DepartmentScope(maintAdmin).DepartmentID)
	assert.Equal(t, DepartmentScope(orphanAdmin), DepartmentScope(Caller{Role: domain.RoleMaintenanceAdmin}))

	profiles := ProfileScope(maintAdmin)
	assert.Equal(t, "maint", *profiles.DepartmentID)
	assert.Nil(t, profiles.SelfID)
	assert.Equal(t, "mu", *ProfileScope(maintUser).SelfID)
}
