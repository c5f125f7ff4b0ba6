package mapping

import "time"

type Status string

const (
	StatusSuggested Status = "suggested"
	StatusConfirmed Status = "confirmed"
	StatusIgnored   Status = "ignored"
)

type Confidence string

const (
	ConfidenceExact   Confidence = "exact"
	ConfidencePartial Confidence = "partial"
	ConfidenceNone    Confidence = "none"
)

// EmployeeMapping links one Square team member to an internal employee.
// A confirmed mapping has exactly one of EmployeeID and TipEmployeeID set.
type EmployeeMapping struct {
	ID                   string
	CompanyID            string
	SquareTeamMemberID   string
	SquareTeamMemberName string
	EmployeeID           *string
	TipEmployeeID        *string
	Status               Status
	ConfirmedBy          *string
	ConfirmedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Counts tallies mappings per status.
type Counts struct {
	Confirmed int
	Suggested int
	Ignored   int
}
