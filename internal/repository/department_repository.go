package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greatlakes/greenhouse-tickets/internal/domain"
)

// DepartmentRepository reads departments.
type DepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	GetByEmail(ctx context.Context, email string) (*domain.Department, error)
	List(ctx context.Context, scope Scope) ([]domain.Department, error)
}

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	const query = `SELECT id, name, email, created_at FROM departments WHERE id=$1`
	var dept domain.Department
	if err := r.pool.QueryRow(ctx, query, id).Scan(&dept.ID, &dept.Name, &dept.Email, &dept.CreatedAt); err != nil {
		return nil, err
	}
	return &dept, nil
}

// GetByEmail matches the department mailbox case-insensitively.
func (r *departmentRepository) GetByEmail(ctx context.Context, email string) (*domain.Department, error) {
	const query = `SELECT id, name, email, created_at FROM departments WHERE LOWER(email)=LOWER($1)`
	var dept domain.Department
	if err := r.pool.QueryRow(ctx, query, email).Scan(&dept.ID, &dept.Name, &dept.Email, &dept.CreatedAt); err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) List(ctx context.Context, scope Scope) ([]domain.Department, error) {
	clause, args := scopeClause(scope, scopeColumns{departmentColumn: "id"}, nil)
	query := fmt.Sprintf(`SELECT id, name, email, created_at FROM departments WHERE %s ORDER BY name`, clause)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		var dept domain.Department
		if err := rows.Scan(&dept.ID, &dept.Name, &dept.Email, &dept.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}
