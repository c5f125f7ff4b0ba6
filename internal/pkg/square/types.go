package square

import (
	"strings"
	"time"
)

// Location is a Square business location.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Timezone string `json:"timezone"`
}

// TeamMember is a worker on the merchant's Square roster.
type TeamMember struct {
	ID           string `json:"id"`
	GivenName    string `json:"given_name"`
	FamilyName   string `json:"family_name"`
	EmailAddress string `json:"email_address,omitempty"`
	Status       string `json:"status"`
}

// DisplayName joins given and family names.
func (m TeamMember) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(m.GivenName) + " " + strings.TrimSpace(m.FamilyName))
}

// Timecard is one clock-in/clock-out record with its breaks.
type Timecard struct {
	ID           string     `json:"id"`
	TeamMemberID string     `json:"team_member_id"`
	LocationID   string     `json:"location_id"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	Status       string     `json:"status"`
	Breaks       []Break    `json:"breaks,omitempty"`
	Version      int64      `json:"version,omitempty"`
}

type Break struct {
	ID          string     `json:"id"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	Name        string     `json:"name"`
	IsPaid      bool       `json:"is_paid"`
	BreakTypeID string     `json:"break_type_id,omitempty"`
}

// TimecardFilter selects timecards by workday. Dates are YYYY-MM-DD and
// are interpreted in Timezone.
type TimecardFilter struct {
	LocationIDs   []string
	TeamMemberIDs []string
	StartDate     string
	EndDate       string
	Timezone      string
}

const (
	TeamMemberStatusActive = "ACTIVE"

	TimecardStatusOpen   = "OPEN"
	TimecardStatusClosed = "CLOSED"
)
