package timeclock

import "time"

type Source string

const (
	SourceManual Source = "manual"
	SourceSquare Source = "square"
)

// Entry is one clock-in/clock-out record. ExternalID is unique per company
// when set.
type Entry struct {
	ID            string
	CompanyID     string
	EmployeeID    *string
	TipEmployeeID *string
	EmployeeName  string
	ClockIn       time.Time
	ClockOut      *time.Time
	Source        Source
	ExternalID    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Break is parented to an Entry and follows the same external id rule.
type Break struct {
	ID         string
	CompanyID  string
	EntryID    string
	StartAt    time.Time
	EndAt      *time.Time
	IsPaid     bool
	Label      string
	ExternalID *string
}
