package mapping

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/validator"
)

type ConfirmMappingRequest struct {
	ID            string  `json:"-"`
	CompanyID     string  `json:"-"`
	ConfirmedBy   string  `json:"-"`
	EmployeeID    *string `json:"employee_id"`
	TipEmployeeID *string `json:"tip_employee_id"`
}

func (r *ConfirmMappingRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs = append(errs, validator.ValidationError{
			Field:   "id",
			Message: "mapping id is required",
		})
	}

	r.EmployeeID = trimOptional(r.EmployeeID)
	r.TipEmployeeID = trimOptional(r.TipEmployeeID)

	if (r.EmployeeID == nil) == (r.TipEmployeeID == nil) {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: ErrInvalidMappingLink.Error(),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

type MappingResponse struct {
	ID                   string     `json:"id"`
	SquareTeamMemberID   string     `json:"square_team_member_id"`
	SquareTeamMemberName string     `json:"square_team_member_name"`
	EmployeeID           *string    `json:"employee_id"`
	TipEmployeeID        *string    `json:"tip_employee_id"`
	Status               Status     `json:"status"`
	ConfirmedBy          *string    `json:"confirmed_by,omitempty"`
	ConfirmedAt          *time.Time `json:"confirmed_at,omitempty"`
}

func ToResponse(m EmployeeMapping) MappingResponse {
	return MappingResponse{
		ID:                   m.ID,
		SquareTeamMemberID:   m.SquareTeamMemberID,
		SquareTeamMemberName: m.SquareTeamMemberName,
		EmployeeID:           m.EmployeeID,
		TipEmployeeID:        m.TipEmployeeID,
		Status:               m.Status,
		ConfirmedBy:          m.ConfirmedBy,
		ConfirmedAt:          m.ConfirmedAt,
	}
}

// Suggestion is a newly discovered team member with its proposed link.
type Suggestion struct {
	MappingID            string     `json:"mapping_id"`
	SquareTeamMemberID   string     `json:"square_team_member_id"`
	SquareTeamMemberName string     `json:"square_team_member_name"`
	EmployeeID           *string    `json:"employee_id"`
	TipEmployeeID        *string    `json:"tip_employee_id"`
	MatchedName          *string    `json:"matched_name"`
	Confidence           Confidence `json:"confidence"`
}
