package squaresync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/squaresync"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/validator"
)

// Square does not always report an expiry; its access tokens last 30 days.
const defaultTokenLifetime = 30 * 24 * time.Hour

// GetAuthenticatedClient returns a client for companyID, refreshing the
// access token first when it is expired or about to expire.
func (s *SquareSyncServiceImpl) GetAuthenticatedClient(ctx context.Context, companyID string) (SquareAPI, connection.SquareConnection, error) {
	conn, err := s.loadConfigured(ctx, companyID)
	if err != nil {
		return nil, connection.SquareConnection{}, err
	}

	if conn.NeedsRefresh(s.now(), s.cfg.RefreshWindow) {
		conn, err = s.refreshTokens(ctx, companyID)
		if err != nil {
			return nil, connection.SquareConnection{}, err
		}
	}

	return s.newClient(*conn.AccessToken), conn, nil
}

// refreshTokens serializes refreshes per company and re-checks the expiry
// once the lock is held, so a concurrent caller's refresh is reused.
func (s *SquareSyncServiceImpl) refreshTokens(ctx context.Context, companyID string) (connection.SquareConnection, error) {
	unlock, err := s.locker.Lock(ctx, "square-refresh:"+companyID)
	if err != nil {
		return connection.SquareConnection{}, fmt.Errorf("acquire refresh lock: %w", err)
	}
	defer unlock()

	conn, err := s.loadConfigured(ctx, companyID)
	if err != nil {
		return connection.SquareConnection{}, err
	}
	if !conn.NeedsRefresh(s.now(), s.cfg.RefreshWindow) {
		return conn, nil
	}

	tok, err := s.oauth.Refresh(ctx, *conn.RefreshToken)
	if err != nil {
		slog.Error("Square token refresh failed", "company_id", companyID, "error", err)
		s.recordSyncError(ctx, companyID, connection.SyncErrorReconnectRequired)
		return connection.SquareConnection{}, fmt.Errorf("%w: %v", connection.ErrRefreshFailed, err)
	}

	expiresAt := tok.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(defaultTokenLifetime)
	}

	err = s.connections.UpdateTokens(ctx, companyID, connection.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		return connection.SquareConnection{}, fmt.Errorf("persist refreshed tokens: %w", err)
	}

	slog.Info("Square access token refreshed", "company_id", companyID, "expires_at", expiresAt)

	return s.loadConfigured(ctx, companyID)
}

// recordSyncError marks the connection so the company's status shows why
// sync stopped. Failing to record it must not hide the original error.
func (s *SquareSyncServiceImpl) recordSyncError(ctx context.Context, companyID string, code string) {
	if err := s.connections.SetSyncError(ctx, companyID, code); err != nil {
		slog.Warn("Failed to record Square sync error", "company_id", companyID, "code", code, "error", err)
	}
}

func (s *SquareSyncServiceImpl) loadConfigured(ctx context.Context, companyID string) (connection.SquareConnection, error) {
	conn, err := s.connections.GetByCompanyID(ctx, companyID)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			return connection.SquareConnection{}, connection.ErrConnectionNotConfigured
		}
		return connection.SquareConnection{}, err
	}
	if !conn.IsConfigured() {
		return connection.SquareConnection{}, connection.ErrConnectionNotConfigured
	}
	return conn, nil
}

// ConnectURL implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) ConnectURL(ctx context.Context, companyID string, userID string) (squaresync.ConnectResponse, error) {
	state, err := s.states.GenerateOAuthState(companyID, userID)
	if err != nil {
		return squaresync.ConnectResponse{}, fmt.Errorf("generate oauth state: %w", err)
	}
	return squaresync.ConnectResponse{AuthorizationURL: s.oauth.AuthCodeURL(state)}, nil
}

// HandleCallback implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) HandleCallback(ctx context.Context, req squaresync.CallbackRequest) (string, error) {
	if req.Error != "" {
		slog.Warn("Square authorization denied", "error", req.Error)
		return "", squaresync.ErrOAuthDenied
	}

	companyID, userID, err := s.states.ValidateOAuthState(req.State)
	if err != nil {
		return "", squaresync.ErrInvalidOAuthState
	}

	if validator.IsEmpty(req.Code) {
		return "", validator.ValidationErrors{{Field: "code", Message: "authorization code is required"}}
	}

	tok, err := s.oauth.Exchange(ctx, req.Code, s.cfg.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("exchange square authorization code: %w", err)
	}
	if tok.MerchantID == "" || tok.RefreshToken == "" {
		return "", fmt.Errorf("square token response missing merchant or refresh token")
	}

	expiresAt := tok.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(defaultTokenLifetime)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		merchantChanged, err := s.connections.SaveOAuth(ctx, companyID, tok.MerchantID, connection.Tokens{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    expiresAt,
		})
		if err != nil {
			return err
		}
		if !merchantChanged {
			return nil
		}
		// Mappings point at the previous merchant's team members.
		slog.Info("Square merchant changed, resetting mappings", "company_id", companyID, "merchant_id", tok.MerchantID)
		return s.mappings.DeleteByCompanyID(ctx, companyID)
	})
	if err != nil {
		if errors.Is(err, connection.ErrMerchantAlreadyLinked) {
			slog.Warn("Square merchant already linked to another company", "company_id", companyID, "merchant_id", tok.MerchantID)
		}
		return "", err
	}

	slog.Info("Square account connected", "company_id", companyID, "merchant_id", tok.MerchantID, "user_id", userID)
	return companyID, nil
}

// Disconnect implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) Disconnect(ctx context.Context, companyID string) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.connections.Clear(ctx, companyID); err != nil {
			return err
		}
		return s.mappings.DeleteByCompanyID(ctx, companyID)
	})
	if err != nil {
		return fmt.Errorf("disconnect square account: %w", err)
	}

	slog.Info("Square account disconnected", "company_id", companyID)
	return nil
}

// GetStatus implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) GetStatus(ctx context.Context, companyID string) (squaresync.StatusResponse, error) {
	var status squaresync.StatusResponse

	conn, err := s.connections.GetByCompanyID(ctx, companyID)
	switch {
	case err == nil:
		status.Connected = conn.IsConfigured()
		status.MerchantID = conn.MerchantID
		status.LocationID = conn.LocationID
		status.SyncEnabled = conn.SyncEnabled
		status.LastSyncAt = conn.LastSyncAt
		status.TokenExpiresAt = conn.TokenExpiresAt
		status.LastSyncError = conn.LastSyncError
		status.ReconnectRequired = conn.ReconnectRequired()
	case errors.Is(err, connection.ErrConnectionNotFound):
	default:
		return squaresync.StatusResponse{}, err
	}

	counts, err := s.mappings.CountByStatus(ctx, companyID)
	if err != nil {
		return squaresync.StatusResponse{}, err
	}
	status.Mappings = squaresync.NewMappingSummary(counts)

	return status, nil
}

// ListLocations implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) ListLocations(ctx context.Context, companyID string) ([]squaresync.LocationResponse, error) {
	client, conn, err := s.GetAuthenticatedClient(ctx, companyID)
	if err != nil {
		return nil, err
	}

	locations, err := client.ListLocations(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]squaresync.LocationResponse, 0, len(locations))
	for _, l := range locations {
		resp = append(resp, squaresync.LocationResponse{
			ID:       l.ID,
			Name:     l.Name,
			Status:   l.Status,
			Timezone: l.Timezone,
			Selected: conn.HasLocation() && *conn.LocationID == l.ID,
		})
	}
	return resp, nil
}

// SelectLocation implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) SelectLocation(ctx context.Context, req squaresync.SelectLocationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	client, _, err := s.GetAuthenticatedClient(ctx, req.CompanyID)
	if err != nil {
		return err
	}

	locations, err := client.ListLocations(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, l := range locations {
		if l.ID == req.LocationID {
			found = true
			break
		}
	}
	if !found {
		return validator.ValidationErrors{{Field: "location_id", Message: "location does not belong to the connected Square account"}}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.connections.UpdateLocation(ctx, req.CompanyID, req.LocationID); err != nil {
			return err
		}
		return s.connections.SetSyncEnabled(ctx, req.CompanyID, true)
	})
	if err != nil {
		return err
	}

	slog.Info("Square location selected", "company_id", req.CompanyID, "location_id", req.LocationID)
	return nil
}

// SetSyncEnabled implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) SetSyncEnabled(ctx context.Context, req squaresync.SetSyncEnabledRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if *req.Enabled {
		conn, err := s.loadConfigured(ctx, req.CompanyID)
		if err != nil {
			return err
		}
		if !conn.HasLocation() {
			return connection.ErrLocationNotConfigured
		}
	}

	if err := s.connections.SetSyncEnabled(ctx, req.CompanyID, *req.Enabled); err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			return connection.ErrConnectionNotConfigured
		}
		return err
	}
	return nil
}
