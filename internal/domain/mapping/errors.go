package mapping

import "errors"

var (
	ErrMappingNotFound    = errors.New("employee mapping not found")
	ErrInvalidMappingLink = errors.New("exactly one of employee_id or tip_employee_id is required")
)
