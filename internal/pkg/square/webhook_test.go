package square

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timecardEventBody = `{
	"merchant_id": "M1",
	"type": "labor.timecard.updated",
	"event_id": "evt-1",
	"created_at": "2025-03-02T17:00:01Z",
	"data": {
		"type": "timecard",
		"id": "TC1",
		"object": {
			"timecard": {
				"id": "TC1",
				"team_member_id": "TM1",
				"location_id": "L1",
				"start_at": "2025-03-02T09:00:00Z",
				"end_at": "2025-03-02T17:00:00Z",
				"status": "CLOSED",
				"version": 3,
				"breaks": [
					{"id": "B1", "start_at": "2025-03-02T12:00:00Z", "end_at": "2025-03-02T12:30:00Z", "name": "Lunch", "is_paid": false}
				]
			}
		}
	}
}`

func TestWebhookVerifier(t *testing.T) {
	v := NewWebhookVerifier("sig-key", "https://example.com/api/v1/integrations/square/webhook")
	body := []byte(timecardEventBody)
	sig := v.Sign(body)

	assert.True(t, v.VerifySignature(body, sig))
	assert.False(t, v.VerifySignature([]byte(timecardEventBody+" "), sig), "tampered body")
	assert.False(t, v.VerifySignature(body, ""), "missing signature")

	otherURL := NewWebhookVerifier("sig-key", "https://example.com/other")
	assert.False(t, otherURL.VerifySignature(body, sig), "different notification URL")

	unset := NewWebhookVerifier("", "https://example.com/api/v1/integrations/square/webhook")
	assert.False(t, unset.VerifySignature(body, unset.Sign(body)))
}

func TestParseWebhookEvent(t *testing.T) {
	event, err := ParseWebhookEvent([]byte(timecardEventBody))
	require.NoError(t, err)
	assert.Equal(t, "M1", event.MerchantID)
	assert.True(t, event.IsTimecardEvent())

	tc, err := event.Timecard()
	require.NoError(t, err)
	assert.Equal(t, "TC1", tc.ID)
	assert.Equal(t, "TM1", tc.TeamMemberID)
	require.NotNil(t, tc.EndAt)
	require.Len(t, tc.Breaks, 1)
	assert.Equal(t, "B1", tc.Breaks[0].ID)

	_, err = ParseWebhookEvent([]byte(`{"type":"labor.timecard.created"}`))
	assert.Error(t, err, "missing merchant_id and event_id")

	_, err = ParseWebhookEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestWebhookEvent_LegacyShift(t *testing.T) {
	body := `{"merchant_id":"M1","type":"labor.shift.created","event_id":"evt-2","data":{"type":"shift","id":"SH1","object":{"shift":{"id":"SH1","employee_id":"TM9","start_at":"2025-03-02T09:00:00Z","status":"OPEN"}}}}`

	event, err := ParseWebhookEvent([]byte(body))
	require.NoError(t, err)
	assert.True(t, event.IsTimecardEvent())

	tc, err := event.Timecard()
	require.NoError(t, err)
	assert.Equal(t, "TM9", tc.TeamMemberID)
	assert.Nil(t, tc.EndAt)
}

func TestWebhookEvent_UnknownType(t *testing.T) {
	body := `{"merchant_id":"M1","type":"inventory.count.updated","event_id":"evt-3","data":{"object":{}}}`

	event, err := ParseWebhookEvent([]byte(body))
	require.NoError(t, err)
	assert.False(t, event.IsTimecardEvent())

	_, err = event.Timecard()
	assert.Error(t, err)
}
