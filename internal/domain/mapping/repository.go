package mapping

import (
	"context"
	"time"
)

// MappingRepository defines data access for employee mappings.
// All methods are scoped by companyID.
type MappingRepository interface {
	ListByCompanyID(ctx context.Context, companyID string) ([]EmployeeMapping, error)

	// ListConfirmed returns only mappings with status confirmed.
	ListConfirmed(ctx context.Context, companyID string) ([]EmployeeMapping, error)

	// CreateIfAbsent inserts m unless a row for the same team member exists.
	// created is false, and the returned mapping empty, when the row already
	// existed.
	CreateIfAbsent(ctx context.Context, m EmployeeMapping) (EmployeeMapping, bool, error)

	GetByID(ctx context.Context, id string, companyID string) (EmployeeMapping, error)

	// Confirm sets exactly one internal link and marks the mapping confirmed.
	Confirm(ctx context.Context, id string, companyID string, employeeID, tipEmployeeID *string, confirmedBy string, at time.Time) (EmployeeMapping, error)

	Ignore(ctx context.Context, id string, companyID string) (EmployeeMapping, error)
	Delete(ctx context.Context, id string, companyID string) error
	DeleteByCompanyID(ctx context.Context, companyID string) error
	CountByStatus(ctx context.Context, companyID string) (Counts, error)
}
