package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/auth"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/squaresync"
	"github.com/cmlabs-hris/timeclock-sync/internal/handler/http/response"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/square"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

// Square caps webhook payloads well below this.
const maxWebhookBodyBytes = 1 << 20

type SquareHandler interface {
	Connect(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
	Disconnect(w http.ResponseWriter, r *http.Request)
	Status(w http.ResponseWriter, r *http.Request)

	ListLocations(w http.ResponseWriter, r *http.Request)
	SelectLocation(w http.ResponseWriter, r *http.Request)
	SetSyncEnabled(w http.ResponseWriter, r *http.Request)
	Sync(w http.ResponseWriter, r *http.Request)

	ListMappings(w http.ResponseWriter, r *http.Request)
	SuggestMappings(w http.ResponseWriter, r *http.Request)
	ConfirmMapping(w http.ResponseWriter, r *http.Request)
	IgnoreMapping(w http.ResponseWriter, r *http.Request)
	DeleteMapping(w http.ResponseWriter, r *http.Request)

	Webhook(w http.ResponseWriter, r *http.Request)
}

type squareHandlerImpl struct {
	squareService squaresync.SquareSyncService
	frontendURL   string
}

func NewSquareHandler(squareService squaresync.SquareSyncService, frontendURL string) SquareHandler {
	return &squareHandlerImpl{
		squareService: squareService,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
	}
}

type requestClaims struct {
	companyID string
	userID    string
}

func claimsFromRequest(r *http.Request) (requestClaims, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return requestClaims{}, auth.ErrInvalidToken
	}

	companyID, ok := claims["company_id"].(string)
	if !ok || companyID == "" {
		return requestClaims{}, auth.ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)

	return requestClaims{companyID: companyID, userID: userID}, nil
}

// Connect implements SquareHandler.
func (h *squareHandlerImpl) Connect(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resp, err := h.squareService.ConnectURL(r.Context(), claims.companyID, claims.userID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}

// Callback implements SquareHandler. The browser lands here from Square, so
// every outcome redirects back to the frontend.
func (h *squareHandlerImpl) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := squaresync.CallbackRequest{
		Code:  query.Get("code"),
		State: query.Get("state"),
		Error: query.Get("error"),
	}

	_, err := h.squareService.HandleCallback(r.Context(), req)
	if err != nil {
		reason := "connect_failed"
		switch {
		case errors.Is(err, squaresync.ErrOAuthDenied):
			reason = "access_denied"
		case errors.Is(err, squaresync.ErrInvalidOAuthState):
			reason = "invalid_state"
		case errors.Is(err, connection.ErrMerchantAlreadyLinked):
			reason = "merchant_already_linked"
		}
		slog.Warn("Square OAuth callback failed", "reason", reason, "error", err)
		h.redirect(w, r, url.Values{"status": {"error"}, "reason": {reason}})
		return
	}

	h.redirect(w, r, url.Values{"status": {"connected"}})
}

func (h *squareHandlerImpl) redirect(w http.ResponseWriter, r *http.Request, params url.Values) {
	target := h.frontendURL + "/settings/integrations/square?" + params.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// Disconnect implements SquareHandler.
func (h *squareHandlerImpl) Disconnect(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if err := h.squareService.Disconnect(r.Context(), claims.companyID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Square account disconnected", nil)
}

// Status implements SquareHandler.
func (h *squareHandlerImpl) Status(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	status, err := h.squareService.GetStatus(r.Context(), claims.companyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, status)
}

// ListLocations implements SquareHandler.
func (h *squareHandlerImpl) ListLocations(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	locations, err := h.squareService.ListLocations(r.Context(), claims.companyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, locations)
}

// SelectLocation implements SquareHandler.
func (h *squareHandlerImpl) SelectLocation(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req squaresync.SelectLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("SelectLocation decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.CompanyID = claims.companyID

	if err := h.squareService.SelectLocation(r.Context(), req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Square location selected", nil)
}

// SetSyncEnabled implements SquareHandler.
func (h *squareHandlerImpl) SetSyncEnabled(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req squaresync.SetSyncEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("SetSyncEnabled decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.CompanyID = claims.companyID

	if err := h.squareService.SetSyncEnabled(r.Context(), req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Square sync settings updated", nil)
}

// Sync implements SquareHandler. An empty body syncs from the last
// watermark.
func (h *squareHandlerImpl) Sync(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req squaresync.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.Error("Sync decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.CompanyID = claims.companyID

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.squareService.SyncCompany(r.Context(), req.CompanyID, req.Range())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Square sync completed", result)
}

// ListMappings implements SquareHandler.
func (h *squareHandlerImpl) ListMappings(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	mappings, err := h.squareService.GetMappings(r.Context(), claims.companyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, mappings)
}

// SuggestMappings implements SquareHandler.
func (h *squareHandlerImpl) SuggestMappings(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	suggestions, err := h.squareService.SuggestMappings(r.Context(), claims.companyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, suggestions)
}

// ConfirmMapping implements SquareHandler.
func (h *squareHandlerImpl) ConfirmMapping(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req mapping.ConfirmMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("ConfirmMapping decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.ID = chi.URLParam(r, "id")
	req.CompanyID = claims.companyID
	req.ConfirmedBy = claims.userID

	result, err := h.squareService.ConfirmMapping(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Mapping confirmed", result)
}

// IgnoreMapping implements SquareHandler.
func (h *squareHandlerImpl) IgnoreMapping(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.squareService.IgnoreMapping(r.Context(), chi.URLParam(r, "id"), claims.companyID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Mapping ignored", result)
}

// DeleteMapping implements SquareHandler.
func (h *squareHandlerImpl) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if err := h.squareService.DeleteMapping(r.Context(), chi.URLParam(r, "id"), claims.companyID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Mapping deleted", nil)
}

// Webhook implements SquareHandler. Only a bad signature is refused; every
// other outcome is acknowledged so Square stops retrying.
func (h *squareHandlerImpl) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		slog.Error("Failed to read Square webhook body", "error", err)
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	err = h.squareService.HandleWebhook(r.Context(), body, r.Header.Get(square.SignatureHeader))
	if errors.Is(err, squaresync.ErrSignatureInvalid) {
		response.HandleError(w, err)
		return
	}
	if err != nil {
		slog.Warn("Acknowledging malformed Square webhook", "error", err)
	}

	response.Success(w, nil)
}
