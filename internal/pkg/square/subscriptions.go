package square

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/google/uuid"
)

// WebhookSubscription is a Square webhook registration.
type WebhookSubscription struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	Enabled         bool     `json:"enabled"`
	EventTypes      []string `json:"event_types"`
	NotificationURL string   `json:"notification_url"`
	APIVersion      string   `json:"api_version,omitempty"`
}

// ListWebhookSubscriptions requires an application-level access token.
func (c *Client) ListWebhookSubscriptions(ctx context.Context) ([]WebhookSubscription, error) {
	return paginate(ctx, func(ctx context.Context, cursor string) ([]WebhookSubscription, string, error) {
		path := "/v2/webhooks/subscriptions"
		if cursor != "" {
			path += "?cursor=" + url.QueryEscape(cursor)
		}

		var resp struct {
			Subscriptions []WebhookSubscription `json:"subscriptions"`
			Cursor        string                `json:"cursor"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, "", fmt.Errorf("list webhook subscriptions: %w", err)
		}
		return resp.Subscriptions, resp.Cursor, nil
	})
}

func (c *Client) CreateWebhookSubscription(ctx context.Context, sub WebhookSubscription) (WebhookSubscription, error) {
	req := struct {
		IdempotencyKey string              `json:"idempotency_key"`
		Subscription   WebhookSubscription `json:"subscription"`
	}{
		IdempotencyKey: uuid.NewString(),
		Subscription:   sub,
	}

	var resp struct {
		Subscription WebhookSubscription `json:"subscription"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/webhooks/subscriptions", req, &resp); err != nil {
		return WebhookSubscription{}, fmt.Errorf("create webhook subscription: %w", err)
	}
	return resp.Subscription, nil
}

// EnsureWebhookSubscription creates a subscription for notificationURL
// unless an enabled one already covers every event type.
func (c *Client) EnsureWebhookSubscription(ctx context.Context, notificationURL string, eventTypes []string) (WebhookSubscription, error) {
	existing, err := c.ListWebhookSubscriptions(ctx)
	if err != nil {
		return WebhookSubscription{}, err
	}

	for _, sub := range existing {
		if sub.NotificationURL != notificationURL || !sub.Enabled {
			continue
		}
		covered := true
		for _, et := range eventTypes {
			if !slices.Contains(sub.EventTypes, et) {
				covered = false
				break
			}
		}
		if covered {
			slog.Info("Square webhook subscription already registered", "subscription_id", sub.ID)
			return sub, nil
		}
	}

	created, err := c.CreateWebhookSubscription(ctx, WebhookSubscription{
		Name:            "timeclock-sync",
		Enabled:         true,
		EventTypes:      eventTypes,
		NotificationURL: notificationURL,
		APIVersion:      c.apiVersion,
	})
	if err != nil {
		return WebhookSubscription{}, err
	}

	slog.Info("Square webhook subscription created", "subscription_id", created.ID)
	return created, nil
}
