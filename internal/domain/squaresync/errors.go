package squaresync

import (
	"errors"
	"fmt"
)

var (
	ErrSignatureInvalid  = errors.New("invalid webhook signature")
	ErrInvalidOAuthState = errors.New("invalid or expired oauth state")
	ErrOAuthDenied       = errors.New("square authorization was denied")
)

// RecordApplyFailed wraps a failure to upsert one timecard or break.
type RecordApplyFailed struct {
	ExternalID string
	Err        error
}

func (e *RecordApplyFailed) Error() string {
	return fmt.Sprintf("apply record %s: %v", e.ExternalID, e.Err)
}

func (e *RecordApplyFailed) Unwrap() error {
	return e.Err
}
