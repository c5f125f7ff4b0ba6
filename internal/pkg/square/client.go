package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	SandboxBaseURL    = "https://connect.squareupsandbox.com"
	ProductionBaseURL = "https://connect.squareup.com"

	defaultAPIVersion = "2025-01-23"
	pageLimit         = 200
)

// ClientOptions are shared by every per-tenant client. Limiter, when set,
// is shared across tenants so the whole process stays under the
// platform's rate limit.
type ClientOptions struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	Limiter    *rate.Limiter
	HTTPClient *http.Client
}

// Client issues authenticated, read-only calls to the Square API.
// Every list method follows cursors until exhausted.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiVersion string
	limiter    *rate.Limiter
}

// NewClient builds a client that sends accessToken as a bearer token.
func NewClient(accessToken string, opts ClientOptions) *Client {
	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = opts.Timeout
	if httpClient.Timeout == 0 {
		httpClient.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}
	apiVersion := opts.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		limiter:    opts.Limiter,
	}
}

// APIError is a non-2xx response from Square.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
}

type ErrorDetail struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Field    string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("square API error [%d]", e.StatusCode)
	}
	first := e.Errors[0]
	return fmt.Sprintf("square API error [%d] %s: %s", e.StatusCode, first.Code, first.Detail)
}

// IsUnauthorized reports whether Square rejected the access token.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// ListLocations returns every location of the merchant.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	return paginate(ctx, func(ctx context.Context, cursor string) ([]Location, string, error) {
		path := "/v2/locations"
		if cursor != "" {
			path += "?cursor=" + url.QueryEscape(cursor)
		}

		var resp struct {
			Locations []Location `json:"locations"`
			Cursor    string     `json:"cursor"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, "", fmt.Errorf("list locations: %w", err)
		}
		return resp.Locations, resp.Cursor, nil
	})
}

// ListTeamMembers returns active team members, optionally limited to one
// location.
func (c *Client) ListTeamMembers(ctx context.Context, locationID string) ([]TeamMember, error) {
	type filter struct {
		LocationIDs []string `json:"location_ids,omitempty"`
		Status      string   `json:"status"`
	}
	type searchRequest struct {
		Query struct {
			Filter filter `json:"filter"`
		} `json:"query"`
		Limit  int    `json:"limit"`
		Cursor string `json:"cursor,omitempty"`
	}

	return paginate(ctx, func(ctx context.Context, cursor string) ([]TeamMember, string, error) {
		var req searchRequest
		req.Query.Filter.Status = TeamMemberStatusActive
		if locationID != "" {
			req.Query.Filter.LocationIDs = []string{locationID}
		}
		req.Limit = pageLimit
		req.Cursor = cursor

		var resp struct {
			TeamMembers []TeamMember `json:"team_members"`
			Cursor      string       `json:"cursor"`
		}
		if err := c.do(ctx, http.MethodPost, "/v2/team-members/search", req, &resp); err != nil {
			return nil, "", fmt.Errorf("search team members: %w", err)
		}
		return resp.TeamMembers, resp.Cursor, nil
	})
}

// ListTimecards returns timecards whose workday falls in the filter's
// date range.
func (c *Client) ListTimecards(ctx context.Context, f TimecardFilter) ([]Timecard, error) {
	type dateRange struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	type workday struct {
		DateRange        dateRange `json:"date_range"`
		MatchTimecardsBy string    `json:"match_timecards_by"`
		DefaultTimezone  string    `json:"default_timezone,omitempty"`
	}
	type filter struct {
		LocationIDs   []string `json:"location_ids,omitempty"`
		TeamMemberIDs []string `json:"team_member_ids,omitempty"`
		Workday       *workday `json:"workday,omitempty"`
	}
	type searchRequest struct {
		Query struct {
			Filter filter `json:"filter"`
		} `json:"query"`
		Limit  int    `json:"limit"`
		Cursor string `json:"cursor,omitempty"`
	}

	return paginate(ctx, func(ctx context.Context, cursor string) ([]Timecard, string, error) {
		var req searchRequest
		req.Query.Filter.LocationIDs = f.LocationIDs
		req.Query.Filter.TeamMemberIDs = f.TeamMemberIDs
		if f.StartDate != "" || f.EndDate != "" {
			req.Query.Filter.Workday = &workday{
				DateRange:        dateRange{StartDate: f.StartDate, EndDate: f.EndDate},
				MatchTimecardsBy: "START_AT",
				DefaultTimezone:  f.Timezone,
			}
		}
		req.Limit = pageLimit
		req.Cursor = cursor

		var resp struct {
			Timecards []Timecard `json:"timecards"`
			Cursor    string     `json:"cursor"`
		}
		if err := c.do(ctx, http.MethodPost, "/v2/labor/timecards/search", req, &resp); err != nil {
			return nil, "", fmt.Errorf("search timecards: %w", err)
		}
		return resp.Timecards, resp.Cursor, nil
	})
}

// paginate keeps calling fetch with the returned cursor until Square stops
// returning one, and hands back the accumulated collection.
// ErrRepeatedCursor is returned when a listing hands back a cursor it
// already returned, which would otherwise page forever.
var ErrRepeatedCursor = errors.New("square returned a repeated pagination cursor")

func paginate[T any](ctx context.Context, fetch func(ctx context.Context, cursor string) ([]T, string, error)) ([]T, error) {
	all := make([]T, 0)
	seen := make(map[string]struct{})
	cursor := ""
	for {
		page, next, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		if _, ok := seen[next]; ok {
			return nil, fmt.Errorf("%w: %q", ErrRepeatedCursor, next)
		}
		seen[next] = struct{}{}
		cursor = next
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Square-Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Errors []ErrorDetail `json:"errors"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil {
			apiErr.Errors = errBody.Errors
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
