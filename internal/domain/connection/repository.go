package connection

import (
	"context"
	"time"
)

// ConnectionRepository persists one SquareConnection per company.
type ConnectionRepository interface {
	// GetByCompanyID returns ErrConnectionNotFound when no row exists.
	GetByCompanyID(ctx context.Context, companyID string) (SquareConnection, error)

	// GetByMerchantID only matches connections with sync enabled.
	GetByMerchantID(ctx context.Context, merchantID string) (SquareConnection, error)

	// SaveOAuth upserts credentials after an authorization-code exchange.
	// Sync stays disabled until a location is selected. When the stored
	// merchant differs, location, sync flag and watermark are reset and
	// merchantChanged is true. A merchant held by another company returns
	// ErrMerchantAlreadyLinked.
	SaveOAuth(ctx context.Context, companyID string, merchantID string, tokens Tokens) (merchantChanged bool, err error)

	// UpdateTokens stores a refreshed token set and clears LastSyncError.
	// An empty RefreshToken keeps the stored one.
	UpdateTokens(ctx context.Context, companyID string, tokens Tokens) error

	UpdateLocation(ctx context.Context, companyID string, locationID string) error
	SetSyncEnabled(ctx context.Context, companyID string, enabled bool) error

	// UpdateLastSync advances the watermark and clears LastSyncError.
	UpdateLastSync(ctx context.Context, companyID string, at time.Time) error
	SetSyncError(ctx context.Context, companyID string, code string) error

	// ListSyncEnabledCompanyIDs returns the companies eligible for scheduled
	// sync. Credentials are not read, so one unreadable row cannot fail
	// the listing.
	ListSyncEnabledCompanyIDs(ctx context.Context) ([]string, error)

	// Clear nulls every credential field and disables sync.
	Clear(ctx context.Context, companyID string) error
}
