package squaresync

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/squaresync"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/square"
)

// HandleWebhook implements squaresync.SquareSyncService. Once the signature
// and envelope are valid the delivery is acknowledged, whatever happens
// while applying it.
func (s *SquareSyncServiceImpl) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.verifier.VerifySignature(body, signature) {
		slog.Warn("Rejected Square webhook with invalid signature")
		return squaresync.ErrSignatureInvalid
	}

	event, err := square.ParseWebhookEvent(body)
	if err != nil {
		return err
	}

	logger := slog.With("event_id", event.EventID, "event_type", event.Type, "merchant_id", event.MerchantID)

	conn, err := s.connections.GetByMerchantID(ctx, event.MerchantID)
	if err != nil {
		// Merchants without an enabled connection are dropped, including
		// deliveries racing a disconnect.
		if errors.Is(err, connection.ErrConnectionNotFound) {
			logger.Info("Dropping Square webhook for unknown merchant")
			return nil
		}
		logger.Error("Failed to resolve company for Square webhook", "error", err)
		return nil
	}
	logger = logger.With("company_id", conn.CompanyID)

	if !event.IsTimecardEvent() {
		logger.Info("Ignoring unsupported Square webhook event")
		return nil
	}

	tc, err := event.Timecard()
	if err != nil {
		logger.Error("Failed to extract timecard from Square webhook", "error", err)
		return nil
	}

	if conn.HasLocation() && tc.LocationID != "" && tc.LocationID != *conn.LocationID {
		logger.Info("Ignoring Square timecard for unselected location", "location_id", tc.LocationID)
		return nil
	}

	if err := s.ApplyTimecard(ctx, conn.CompanyID, tc, nil); err != nil {
		if errors.Is(err, errTeamMemberNotMapped) {
			logger.Info("Skipping Square timecard for unmapped team member", "team_member_id", tc.TeamMemberID)
			return nil
		}
		logger.Error("Failed to apply Square timecard from webhook", "external_id", tc.ID, "error", err)
		return nil
	}

	logger.Info("Applied Square timecard from webhook", "external_id", tc.ID)
	return nil
}
