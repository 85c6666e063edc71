package repository

import (
	"fmt"
	"strings"
)

// Scope is the authorization clause ANDed into every listing query.
// The zero value matches nothing.
type Scope struct {
	All          bool
	DepartmentID *string
	SelfID       *string
}

// scopeColumns names the columns a Scope binds to for a given table.
// An empty selfColumn means the table has no per-caller ownership column.
type scopeColumns struct {
	departmentColumn string
	selfColumn       string
}

// scopeClause renders scope as a SQL predicate, appending its parameters to args.
func scopeClause(scope Scope, cols scopeColumns, args []any) (string, []any) {
	if scope.All {
		return "TRUE", args
	}
	var parts []string
	if scope.DepartmentID != nil && cols.departmentColumn != "" {
		args = append(args, *scope.DepartmentID)
		parts = append(parts, fmt.Sprintf("%s=$%d", cols.departmentColumn, len(args)))
	}
	if scope.SelfID != nil && cols.selfColumn != "" {
		args = append(args, *scope.SelfID)
		parts = append(parts, fmt.Sprintf("%s=$%d", cols.selfColumn, len(args)))
	}
	if len(parts) == 0 {
		return "FALSE", args
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func placeholders(args []any, values ...any) (string, []any) {
	marks := make([]string, len(values))
	for i, v := range values {
		args = append(args, v)
		marks[i] = fmt.Sprintf("$%d", len(args))
	}
	return strings.Join(marks, ","), args
}
