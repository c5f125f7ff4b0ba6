package employee

import "context"

type EmployeeRepository interface {
	// ListActiveByCompanyID returns non-deleted employees linked to a user.
	ListActiveByCompanyID(ctx context.Context, companyID string) ([]Employee, error)

	// ListTipEmployeesByCompanyID returns active lightweight employees.
	ListTipEmployeesByCompanyID(ctx context.Context, companyID string) ([]TipEmployee, error)

	// Exists reports whether employeeID or tipEmployeeID (whichever is set)
	// belongs to companyID.
	Exists(ctx context.Context, companyID string, employeeID, tipEmployeeID *string) (bool, error)
}
