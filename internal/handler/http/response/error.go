package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/auth"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/employee"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/squaresync"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/user"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/square"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var apiErr *square.APIError
	if errors.As(err, &apiErr) && !errors.Is(err, connection.ErrRefreshFailed) {
		slog.Error("Square API call failed", "status", apiErr.StatusCode, "error", err)
		if apiErr.IsUnauthorized() {
			Conflict(w, "Square rejected the stored credentials, reconnect required")
			return
		}
		BadGateway(w, "Square API request failed")
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, auth.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, user.ErrCompanyIDRequired):
		Forbidden(w, "Company membership required")
	case errors.Is(err, user.ErrManagerAccessRequired):
		Forbidden(w, "Manager access required")
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, "Insufficient permissions")

	// Connection errors
	case errors.Is(err, connection.ErrConnectionNotConfigured), errors.Is(err, connection.ErrConnectionNotFound):
		BadRequest(w, "Square account is not connected", nil)
	case errors.Is(err, connection.ErrRefreshFailed):
		Conflict(w, "Square authorization expired, reconnect required")
	case errors.Is(err, connection.ErrLocationNotConfigured):
		BadRequest(w, "Square location has not been selected", nil)
	case errors.Is(err, connection.ErrMerchantAlreadyLinked):
		Conflict(w, "Square account is already connected to another company")

	// Sync errors
	case errors.Is(err, squaresync.ErrSignatureInvalid):
		Unauthorized(w, "Invalid webhook signature")
	case errors.Is(err, squaresync.ErrInvalidOAuthState):
		BadRequest(w, "Invalid or expired authorization state", nil)
	case errors.Is(err, squaresync.ErrOAuthDenied):
		BadRequest(w, "Square authorization was denied", nil)

	// Mapping errors
	case errors.Is(err, mapping.ErrMappingNotFound):
		NotFound(w, "Employee mapping not found")
	case errors.Is(err, mapping.ErrInvalidMappingLink):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, employee.ErrTipEmployeeNotFound):
		NotFound(w, "Tip employee not found")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
