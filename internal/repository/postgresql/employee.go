package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/employee"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/database"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

// ListActiveByCompanyID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListActiveByCompanyID(ctx context.Context, companyID string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id, user_id, company_id, full_name, created_at, deleted_at
		FROM employees
		WHERE company_id = $1 AND user_id IS NOT NULL AND deleted_at IS NULL
		ORDER BY full_name
	`

	rows, err := q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		var emp employee.Employee
		if err := rows.Scan(&emp.ID, &emp.UserID, &emp.CompanyID, &emp.FullName, &emp.CreatedAt, &emp.DeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return employees, nil
}

// ListTipEmployeesByCompanyID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListTipEmployeesByCompanyID(ctx context.Context, companyID string) ([]employee.TipEmployee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id, company_id, full_name, is_active, created_at
		FROM tip_employees
		WHERE company_id = $1 AND is_active = TRUE
		ORDER BY full_name
	`

	rows, err := q.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tip employees: %w", err)
	}
	defer rows.Close()

	var tipEmployees []employee.TipEmployee
	for rows.Next() {
		var te employee.TipEmployee
		if err := rows.Scan(&te.ID, &te.CompanyID, &te.FullName, &te.IsActive, &te.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tip employee: %w", err)
		}
		tipEmployees = append(tipEmployees, te)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tip employees: %w", err)
	}

	return tipEmployees, nil
}

// Exists implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) Exists(ctx context.Context, companyID string, employeeID, tipEmployeeID *string) (bool, error) {
	q := GetQuerier(ctx, e.db)

	var (
		query string
		id    string
	)
	switch {
	case employeeID != nil:
		query = `SELECT EXISTS(SELECT 1 FROM employees WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL)`
		id = *employeeID
	case tipEmployeeID != nil:
		query = `SELECT EXISTS(SELECT 1 FROM tip_employees WHERE id = $1 AND company_id = $2)`
		id = *tipEmployeeID
	default:
		return false, nil
	}

	var exists bool
	if err := q.QueryRow(ctx, query, id, companyID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check employee existence: %w", err)
	}
	return exists, nil
}
