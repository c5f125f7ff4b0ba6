package connection

import "errors"

var (
	ErrConnectionNotFound      = errors.New("square connection not found")
	ErrConnectionNotConfigured = errors.New("square account is not connected")
	ErrRefreshFailed           = errors.New("square token refresh failed, reconnect required")
	ErrLocationNotConfigured   = errors.New("square location has not been selected")
	ErrMerchantAlreadyLinked   = errors.New("square account is already connected to another company")
)
