package squaresync

import (
	"context"
	"fmt"
	"testing"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/squaresync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timecardEvent(eventType, merchantID, timecardID, teamMemberID, locationID string) []byte {
	return []byte(fmt.Sprintf(`{
		"merchant_id": %q,
		"type": %q,
		"event_id": "evt-%s",
		"created_at": "2025-03-10T14:00:00Z",
		"data": {
			"type": "timecard",
			"id": %q,
			"object": {
				"timecard": {
					"id": %q,
					"team_member_id": %q,
					"location_id": %q,
					"start_at": "2025-03-10T13:00:00Z",
					"end_at": "2025-03-10T21:00:00Z",
					"status": "CLOSED",
					"breaks": [{"id": "%s-B1", "start_at": "2025-03-10T16:00:00Z", "end_at": "2025-03-10T16:30:00Z", "name": "Lunch", "is_paid": false}]
				}
			}
		}
	}`, merchantID, eventType, timecardID, timecardID, timecardID, teamMemberID, locationID, timecardID))
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("signed timecard event is applied", func(t *testing.T) {
		h := newHarness(t)
		h.confirm("TM1", "Jane Doe", strPtr("emp-1"), nil)
		body := timecardEvent("labor.timecard.updated", testMerchantID, "TC1", "TM1", testLocationID)

		require.NoError(t, h.svc.HandleWebhook(ctx, body, h.verifier.Sign(body)))

		entry, err := h.timeClock.GetByExternalID(ctx, testCompanyID, "TC1")
		require.NoError(t, err)
		assert.Equal(t, "emp-1", *entry.EmployeeID)

		require.NoError(t, h.svc.HandleWebhook(ctx, body, h.verifier.Sign(body)))
		assert.Equal(t, 1, h.timeClock.entryCount(), "redelivery is idempotent")
	})

	t.Run("tampered body is rejected without writes", func(t *testing.T) {
		h := newHarness(t)
		h.confirm("TM1", "Jane Doe", strPtr("emp-1"), nil)
		body := timecardEvent("labor.timecard.updated", testMerchantID, "TC1", "TM1", testLocationID)
		signature := h.verifier.Sign(body)
		tampered := append([]byte{}, body...)
		tampered[len(tampered)-2] = ' '

		err := h.svc.HandleWebhook(ctx, tampered, signature)
		assert.ErrorIs(t, err, squaresync.ErrSignatureInvalid)

		err = h.svc.HandleWebhook(ctx, body, "")
		assert.ErrorIs(t, err, squaresync.ErrSignatureInvalid)

		assert.Zero(t, h.timeClock.writes)
	})

	t.Run("unknown merchant is dropped", func(t *testing.T) {
		h := newHarness(t)
		h.confirm("TM1", "Jane Doe", strPtr("emp-1"), nil)
		body := timecardEvent("labor.timecard.created", "M-unknown", "TC1", "TM1", testLocationID)

		require.NoError(t, h.svc.HandleWebhook(ctx, body, h.verifier.Sign(body)))
		assert.Zero(t, h.timeClock.writes)
	})

	t.Run("disabled connection is dropped", func(t *testing.T) {
		h := newHarness(t)
		h.confirm("TM1", "Jane Doe", strPtr("emp-1"), nil)
		c := h.conns.get(testCompanyID)
		c.SyncEnabled = false
		h.conns.put(c)
		body := timecardEvent("labor.timecard.created", testMerchantID, "TC1", "TM1", testLocationID)

		require.NoError(t, h.svc.HandleWebhook(ctx, body, h.verifier.Sign(body)))
		assert.Zero(t, h.timeClock.writes)
	})

	t.Run("unsupported event type is ignored", func(t *testing.T) {
		h := newHarness(t)
		h.confirm("TM1", "Jane Doe", strPtr("emp-1"), nil)
		body := timecardEvent("team_member.updated", testMerchantID, "TC1", "TM1", testLocationID)

		require.NoError(t, h.svc.HandleWebhook(ctx, body, h.verifier.Sign(body)))
		assert.Zero(t, h.timeClock.writes)
	})

	t.Run("unselected location is ignored", func(t *testing.T) {
		h := newHarness(t)
		h.confirm("TM1", "Jane Doe", strPtr("emp-1"), nil)
		body := timecardEvent("labor.timecard.created", testMerchantID, "TC1", "TM1", "L-other")

		require.NoError(t, h.svc.HandleWebhook(ctx, body, h.verifier.Sign(body)))
		assert.Zero(t, h.timeClock.writes)
	})

	t.Run("unmapped team member is acknowledged", func(t *testing.T) {
		h := newHarness(t)
		body := timecardEvent("labor.timecard.created", testMerchantID, "TC1", "TM1", testLocationID)

		require.NoError(t, h.svc.HandleWebhook(ctx, body, h.verifier.Sign(body)))
		assert.Zero(t, h.timeClock.writes)
	})

	t.Run("malformed envelope", func(t *testing.T) {
		h := newHarness(t)
		body := []byte(`{"type": "labor.timecard.created"}`)

		err := h.svc.HandleWebhook(ctx, body, h.verifier.Sign(body))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, squaresync.ErrSignatureInvalid)
	})
}
