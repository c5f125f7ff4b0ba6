package squaresync

import (
	"context"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
)

// SquareSyncService drives the Square integration for every company.
type SquareSyncService interface {
	// ConnectURL returns the Square authorization URL for companyID.
	ConnectURL(ctx context.Context, companyID string, userID string) (ConnectResponse, error)

	// HandleCallback exchanges the authorization code and stores the
	// connection. It returns the company the state was issued for.
	HandleCallback(ctx context.Context, req CallbackRequest) (string, error)

	// Disconnect clears credentials and removes every mapping.
	Disconnect(ctx context.Context, companyID string) error

	GetStatus(ctx context.Context, companyID string) (StatusResponse, error)
	ListLocations(ctx context.Context, companyID string) ([]LocationResponse, error)
	SelectLocation(ctx context.Context, req SelectLocationRequest) error
	SetSyncEnabled(ctx context.Context, req SetSyncEnabledRequest) error

	// SyncCompany pulls timecards for one company. A nil window derives
	// the range from the last sync.
	SyncCompany(ctx context.Context, companyID string, window *DateRange) (SyncResult, error)

	GetMappings(ctx context.Context, companyID string) ([]mapping.MappingResponse, error)
	SuggestMappings(ctx context.Context, companyID string) ([]mapping.Suggestion, error)
	ConfirmMapping(ctx context.Context, req mapping.ConfirmMappingRequest) (mapping.MappingResponse, error)
	IgnoreMapping(ctx context.Context, id string, companyID string) (mapping.MappingResponse, error)
	DeleteMapping(ctx context.Context, id string, companyID string) error

	// HandleWebhook verifies and applies one webhook delivery. Only
	// ErrSignatureInvalid and envelope parse errors are returned.
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}
