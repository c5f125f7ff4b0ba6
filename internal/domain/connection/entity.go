package connection

import "time"

// SquareConnection is a company's link to its Square merchant account.
// AccessToken and RefreshToken are either both set or both nil.
type SquareConnection struct {
	CompanyID      string
	MerchantID     *string
	AccessToken    *string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	LocationID     *string
	SyncEnabled    bool
	LastSyncAt     *time.Time
	// LastSyncError is a SyncError code set when sync cannot run for the
	// whole company. It is cleared by a successful refresh or sync.
	LastSyncError  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Sync error codes shown in the company's status.
const (
	SyncErrorReconnectRequired     = "reconnect_required"
	SyncErrorLocationNotConfigured = "location_not_configured"
)

// ReconnectRequired reports whether the company must authorize Square again.
func (c SquareConnection) ReconnectRequired() bool {
	return c.LastSyncError != nil && *c.LastSyncError == SyncErrorReconnectRequired
}

// IsConfigured reports whether credentials are stored.
func (c SquareConnection) IsConfigured() bool {
	return c.AccessToken != nil && *c.AccessToken != "" && c.RefreshToken != nil && *c.RefreshToken != ""
}

// HasLocation reports whether a business location was selected.
func (c SquareConnection) HasLocation() bool {
	return c.LocationID != nil && *c.LocationID != ""
}

// NeedsRefresh reports whether the access token is expired or expires
// within window of now. A missing expiry is treated as expired.
func (c SquareConnection) NeedsRefresh(now time.Time, window time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return true
	}
	return !c.TokenExpiresAt.After(now.Add(window))
}

// Tokens is the credential set written after an exchange or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
