package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	playvalidator "github.com/go-playground/validator/v10"
)

// SignatureHeader carries the base64 HMAC-SHA256 of notification URL + body.
const SignatureHeader = "x-square-hmacsha256-signature"

const (
	EventTimecardCreated = "labor.timecard.created"
	EventTimecardUpdated = "labor.timecard.updated"

	// Legacy shift events still sent to subscriptions pinned to older
	// API versions.
	EventShiftCreated = "labor.shift.created"
	EventShiftUpdated = "labor.shift.updated"
)

// TimecardEventTypes are the event types the receiver subscribes to.
var TimecardEventTypes = []string{EventTimecardCreated, EventTimecardUpdated}

// WebhookVerifier handles webhook signature verification.
type WebhookVerifier struct {
	signatureKey    string
	notificationURL string
}

// NewWebhookVerifier binds the signing key to the notification URL that was
// registered with Square.
func NewWebhookVerifier(signatureKey, notificationURL string) *WebhookVerifier {
	return &WebhookVerifier{
		signatureKey:    signatureKey,
		notificationURL: notificationURL,
	}
}

// Sign returns the signature Square would send for body.
func (v *WebhookVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(v.signatureKey))
	mac.Write([]byte(v.notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body. An unset signing
// key never verifies.
func (v *WebhookVerifier) VerifySignature(body []byte, signature string) bool {
	if v.signatureKey == "" || signature == "" {
		return false
	}
	expected := v.Sign(body)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// WebhookEvent is the notification envelope.
type WebhookEvent struct {
	MerchantID string           `json:"merchant_id" validate:"required"`
	Type       string           `json:"type" validate:"required"`
	EventID    string           `json:"event_id" validate:"required"`
	CreatedAt  string           `json:"created_at"`
	Data       WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	Type   string                     `json:"type"`
	ID     string                     `json:"id"`
	Object map[string]json.RawMessage `json:"object"`
}

var envelopeValidator = playvalidator.New()

// ParseWebhookEvent decodes and validates the envelope.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook event: %w", err)
	}
	if err := envelopeValidator.Struct(event); err != nil {
		return WebhookEvent{}, fmt.Errorf("invalid webhook event: %w", err)
	}
	return event, nil
}

// IsTimecardEvent reports whether the event carries a timecard payload.
func (e WebhookEvent) IsTimecardEvent() bool {
	switch e.Type {
	case EventTimecardCreated, EventTimecardUpdated, EventShiftCreated, EventShiftUpdated:
		return true
	}
	return false
}

type timecardPayload struct {
	ID           string         `json:"id"`
	TeamMemberID string         `json:"team_member_id"`
	EmployeeID   string         `json:"employee_id"`
	LocationID   string         `json:"location_id"`
	StartAt      time.Time      `json:"start_at"`
	EndAt        *time.Time     `json:"end_at"`
	Status       string         `json:"status"`
	Breaks       []breakPayload `json:"breaks"`
	Version      int64          `json:"version"`
}

type breakPayload struct {
	ID          string     `json:"id"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
	Name        string     `json:"name"`
	IsPaid      bool       `json:"is_paid"`
	BreakTypeID string     `json:"break_type_id"`
}

// Timecard extracts the nested timecard (or legacy shift) object.
func (e WebhookEvent) Timecard() (Timecard, error) {
	raw, ok := e.Data.Object["timecard"]
	if !ok {
		raw, ok = e.Data.Object["shift"]
	}
	if !ok {
		return Timecard{}, errors.New("webhook event has no timecard object")
	}

	var p timecardPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Timecard{}, fmt.Errorf("decode timecard object: %w", err)
	}
	if p.ID == "" {
		return Timecard{}, errors.New("timecard object has no id")
	}

	tc := Timecard{
		ID:           p.ID,
		TeamMemberID: p.TeamMemberID,
		LocationID:   p.LocationID,
		StartAt:      p.StartAt,
		EndAt:        p.EndAt,
		Status:       p.Status,
		Version:      p.Version,
	}
	if tc.TeamMemberID == "" {
		tc.TeamMemberID = p.EmployeeID
	}
	for _, b := range p.Breaks {
		tc.Breaks = append(tc.Breaks, Break{
			ID:          b.ID,
			StartAt:     b.StartAt,
			EndAt:       b.EndAt,
			Name:        b.Name,
			IsPaid:      b.IsPaid,
			BreakTypeID: b.BreakTypeID,
		})
	}
	return tc, nil
}
