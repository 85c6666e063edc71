package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

func ptr(s string) *string { return &s }

func TestScopeClause(t *testing.T) {
	cols := scopeColumns{departmentColumn: "department_id", selfColumn: "assigned_to"}

	clause, args := scopeClause(Scope{All: true}, cols, nil)
	assert.Equal(t, "TRUE", clause)
	assert.Empty(t, args)

	clause, args = scopeClause(Scope{}, cols, nil)
	assert.Equal(t, "FALSE", clause, "zero scope matches nothing")
	assert.Empty(t, args)

	clause, args = scopeClause(Scope{DepartmentID: ptr("d1"), SelfID: ptr("u1")}, cols, []any{"x"})
	assert.Equal(t, "(department_id=$2 OR assigned_to=$3)", clause)
	assert.Equal(t, []any{"x", "d1", "u1"}, args)

	clause, args = scopeClause(Scope{SelfID: ptr("u1")}, scopeColumns{departmentColumn: "id"}, nil)
	assert.Equal(t, "FALSE", clause, "self scope on a table without an owner column")
	assert.Empty(t, args)
}

func TestBuildTicketListQuery(t *testing.T) {
	query, args := buildTicketListQuery(TicketFilter{
		Scope:      Scope{DepartmentID: ptr("maint"), SelfID: ptr("u1")},
		Unassigned: true,
		AssignedTo: ptr("ignored"),
		Statuses:   []domain.TicketStatus{domain.TicketStatusTodo, domain.TicketStatusOnHold},
		Priorities: []domain.TicketPriority{domain.TicketPriorityHigh},
		Limit:      20,
		Offset:     40,
	})

	assert.Contains(t, query, "WHERE (department_id=$1 OR assigned_to=$2) AND assigned_to IS NULL AND status IN ($3,$4) AND priority IN ($5)")
	assert.Contains(t, query, "LIMIT 20 OFFSET 40")
	assert.Equal(t, []any{"maint", "u1", "todo", "on_hold", "high"}, args)
}

func TestBuildTicketListQuerySearch(t *testing.T) {
	query, args := buildTicketListQuery(TicketFilter{Scope: Scope{All: true}, Search: ptr(" #1042 ")})
	assert.Contains(t, query, "LOWER(title) LIKE $1")
	assert.Contains(t, query, "ticket_number=$2")
	assert.Equal(t, []any{"%#1042%", int64(1042)}, args)
	assert.Contains(t, query, "LIMIT 50 OFFSET 0")

	query, args = buildTicketListQuery(TicketFilter{Scope: Scope{All: true}, Search: ptr("Heater")})
	assert.NotContains(t, query, "ticket_number=")
	assert.Equal(t, []any{"%heater%"}, args)
}

func TestBuildTicketListQueryAlwaysScoped(t *testing.T) {
	query, _ := buildTicketListQuery(TicketFilter{DepartmentID: ptr("maint")})
	where := query[strings.Index(query, "WHERE"):]
	assert.True(t, strings.HasPrefix(where, "WHERE FALSE AND department_id=$1"), where)
}

func TestBuildProfileListQuery(t *testing.T) {
	role := domain.RoleUser
	query, args := buildProfileListQuery(ProfileFilter{
		Scope: Scope{DepartmentID: ptr("maint"), SelfID: ptr("u1")},
		Role:  &role,
	})
	assert.Contains(t, query, "WHERE (department_id=$1 OR id=$2) AND role=$3")
	assert.Contains(t, query, "LIMIT 100 OFFSET 0")
	assert.Equal(t, []any{"maint", "u1", domain.RoleUser}, args)
}

func TestBuildRecordFailureQuery(t *testing.T) {
	query, args := buildRecordFailureQuery("e1", "smtp 421")

	assert.Contains(t, query, "attempts = attempts + 1")
	assert.Contains(t, query, "CASE WHEN attempts + 1 >= $1 THEN 'failed' ELSE 'pending' END")
	assert.Contains(t, query, "WHERE id=$3")
	assert.Equal(t, []any{domain.MaxDeliveryAttempts, "smtp 421", "e1"}, args)
	assert.Equal(t, 3, args[0], "entries fail on the third attempt")

	// The SQL CASE and the in-process rule agree at the boundary.
	bound := args[0].(int)
	for prior := 0; prior < bound; prior++ {
		next, status := domain.NextDeliveryState(prior)
		assert.Equal(t, next >= bound, status == domain.EmailStatusFailed, "prior attempts %d", prior)
	}
}
