package timeclock

import "errors"

var (
	ErrEntryNotFound     = errors.New("time clock entry not found")
	ErrMissingExternalID = errors.New("external id is required for synced records")
)
