package employee

import "errors"

var (
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrTipEmployeeNotFound = errors.New("tip employee not found")
)
