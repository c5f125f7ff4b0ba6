package employee

import "time"

// Employee is an authenticated employee: one backed by a user account.
type Employee struct {
	ID        string
	UserID    *string
	CompanyID string
	FullName  string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// TipEmployee is a lightweight employee record without a login, used for
// tip distribution and time tracking only.
type TipEmployee struct {
	ID        string
	CompanyID string
	FullName  string
	IsActive  bool
	CreatedAt time.Time
}
