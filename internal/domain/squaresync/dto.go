package squaresync

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/validator"
)

// SyncResult aggregates one sync run.
type SyncResult struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// DateRange is an inclusive workday window in YYYY-MM-DD form.
type DateRange struct {
	StartDate string
	EndDate   string
}

type SyncRequest struct {
	CompanyID string `json:"-"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Validate requires both dates or neither.
func (r *SyncRequest) Validate() error {
	var errs validator.ValidationErrors

	if (r.StartDate == "") != (r.EndDate == "") {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date and end_date must be provided together",
		})
	}

	if r.StartDate != "" && r.EndDate != "" {
		start, okStart := validator.IsValidDate(r.StartDate)
		end, okEnd := validator.IsValidDate(r.EndDate)
		if !okStart {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
		if !okEnd {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
		if okStart && okEnd && end.Before(start) {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must not be before start_date",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Range returns nil when no explicit window was requested.
func (r SyncRequest) Range() *DateRange {
	if r.StartDate == "" {
		return nil
	}
	return &DateRange{StartDate: r.StartDate, EndDate: r.EndDate}
}

type CallbackRequest struct {
	Code  string
	State string
	Error string
}

type ConnectResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

type SelectLocationRequest struct {
	CompanyID  string `json:"-"`
	LocationID string `json:"location_id" validate:"required"`
}

func (r *SelectLocationRequest) Validate() error {
	r.LocationID = strings.TrimSpace(r.LocationID)
	return validator.Struct(r)
}

type SetSyncEnabledRequest struct {
	CompanyID string `json:"-"`
	Enabled   *bool  `json:"enabled" validate:"required"`
}

func (r *SetSyncEnabledRequest) Validate() error {
	return validator.Struct(r)
}

type LocationResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Timezone string `json:"timezone"`
	Selected bool   `json:"selected"`
}

// StatusResponse is the connection health summary shown to a company.
// ReconnectRequired asks the company to authorize Square again.
type StatusResponse struct {
	Connected         bool           `json:"connected"`
	ReconnectRequired bool           `json:"reconnect_required"`
	MerchantID        *string        `json:"merchant_id"`
	LocationID        *string        `json:"location_id"`
	SyncEnabled       bool           `json:"sync_enabled"`
	LastSyncAt        *time.Time     `json:"last_sync_at"`
	LastSyncError     *string        `json:"last_sync_error"`
	TokenExpiresAt    *time.Time     `json:"token_expires_at"`
	Mappings          MappingSummary `json:"mappings"`
}

type MappingSummary struct {
	Confirmed int `json:"confirmed"`
	Suggested int `json:"suggested"`
	Ignored   int `json:"ignored"`
}

func NewMappingSummary(c mapping.Counts) MappingSummary {
	return MappingSummary{Confirmed: c.Confirmed, Suggested: c.Suggested, Ignored: c.Ignored}
}
