package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/connection"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/squaresync"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/user"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/jwt"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/square"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

// stubSquareService records the arguments it receives and returns canned
// results.
type stubSquareService struct {
	squaresync.SquareSyncService

	callbackErr error
	syncErr     error
	webhookErr  error
	confirmErr  error

	gotCompanyID string
	gotWindow    *squaresync.DateRange
	gotConfirm   mapping.ConfirmMappingRequest
	gotSignature string
	gotBody      []byte
}

func (s *stubSquareService) HandleCallback(ctx context.Context, req squaresync.CallbackRequest) (string, error) {
	if req.Error != "" {
		return "", squaresync.ErrOAuthDenied
	}
	return "company-1", s.callbackErr
}

func (s *stubSquareService) GetStatus(ctx context.Context, companyID string) (squaresync.StatusResponse, error) {
	s.gotCompanyID = companyID
	return squaresync.StatusResponse{Connected: true}, nil
}

func (s *stubSquareService) SyncCompany(ctx context.Context, companyID string, window *squaresync.DateRange) (squaresync.SyncResult, error) {
	s.gotCompanyID = companyID
	s.gotWindow = window
	return squaresync.SyncResult{Synced: 2, Skipped: 1}, s.syncErr
}

func (s *stubSquareService) ConfirmMapping(ctx context.Context, req mapping.ConfirmMappingRequest) (mapping.MappingResponse, error) {
	s.gotConfirm = req
	if s.confirmErr != nil {
		return mapping.MappingResponse{}, s.confirmErr
	}
	return mapping.MappingResponse{ID: req.ID, Status: mapping.StatusConfirmed}, nil
}

func (s *stubSquareService) Disconnect(ctx context.Context, companyID string) error {
	s.gotCompanyID = companyID
	return nil
}

func (s *stubSquareService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	s.gotBody = body
	s.gotSignature = signature
	return s.webhookErr
}

type routerFixture struct {
	server  *httptest.Server
	service *stubSquareService
	jwt     jwt.Service
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	svc := &stubSquareService{}
	jwtService := jwt.NewJWTService(handlerTestSecret, time.Hour)
	router := NewRouter(jwtService, NewSquareHandler(svc, "https://app.example.com/"), RouterOptions{
		AllowedOrigins: []string{"https://app.example.com"},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &routerFixture{server: server, service: svc, jwt: jwtService}
}

func (f *routerFixture) do(t *testing.T, method, path string, role user.Role, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	if role != "" {
		token, _, err := f.jwt.GenerateAccessToken("user-1", "company-1", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRouter_Authorization(t *testing.T) {
	f := newRouterFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		role   user.Role
		want   int
	}{
		{"missing token", http.MethodGet, "/api/v1/integrations/square/status", "", http.StatusUnauthorized},
		{"employee refused", http.MethodGet, "/api/v1/integrations/square/status", user.RoleEmployee, http.StatusForbidden},
		{"pending refused", http.MethodGet, "/api/v1/integrations/square/status", user.RolePending, http.StatusForbidden},
		{"manager can view", http.MethodGet, "/api/v1/integrations/square/status", user.RoleManager, http.StatusOK},
		{"manager cannot disconnect", http.MethodDelete, "/api/v1/integrations/square/", user.RoleManager, http.StatusForbidden},
		{"owner can disconnect", http.MethodDelete, "/api/v1/integrations/square/", user.RoleOwner, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, tt.method, tt.path, tt.role, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	assert.Equal(t, "company-1", f.service.gotCompanyID, "company comes from the token")
}

func TestRouter_Sync(t *testing.T) {
	t.Run("empty body uses watermark", func(t *testing.T) {
		f := newRouterFixture(t)
		resp := f.do(t, http.MethodPost, "/api/v1/integrations/square/sync", user.RoleManager, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Nil(t, f.service.gotWindow)

		body := decodeBody(t, resp)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, float64(2), data["synced"])
		assert.Equal(t, float64(1), data["skipped"])
	})

	t.Run("explicit window", func(t *testing.T) {
		f := newRouterFixture(t)
		resp := f.do(t, http.MethodPost, "/api/v1/integrations/square/sync", user.RoleManager,
			[]byte(`{"start_date":"2025-01-01","end_date":"2025-01-31"}`))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotNil(t, f.service.gotWindow)
		assert.Equal(t, "2025-01-01", f.service.gotWindow.StartDate)
	})

	t.Run("half window rejected", func(t *testing.T) {
		f := newRouterFixture(t)
		resp := f.do(t, http.MethodPost, "/api/v1/integrations/square/sync", user.RoleManager,
			[]byte(`{"start_date":"2025-01-01"}`))
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("refresh failure asks for reconnect", func(t *testing.T) {
		f := newRouterFixture(t)
		f.service.syncErr = connection.ErrRefreshFailed
		resp := f.do(t, http.MethodPost, "/api/v1/integrations/square/sync", user.RoleManager, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("square outage", func(t *testing.T) {
		f := newRouterFixture(t)
		f.service.syncErr = &square.APIError{StatusCode: http.StatusServiceUnavailable}
		resp := f.do(t, http.MethodPost, "/api/v1/integrations/square/sync", user.RoleManager, nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestRouter_ConfirmMapping(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/integrations/square/mappings/mapping-7/confirm", user.RoleManager,
		[]byte(`{"employee_id":"emp-1"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "mapping-7", f.service.gotConfirm.ID)
	assert.Equal(t, "company-1", f.service.gotConfirm.CompanyID)
	assert.Equal(t, "user-1", f.service.gotConfirm.ConfirmedBy)
	require.NotNil(t, f.service.gotConfirm.EmployeeID)
	assert.Equal(t, "emp-1", *f.service.gotConfirm.EmployeeID)

	f.service.confirmErr = validator.ValidationErrors{{Field: "employee_id", Message: mapping.ErrInvalidMappingLink.Error()}}
	resp = f.do(t, http.MethodPost, "/api/v1/integrations/square/mappings/mapping-7/confirm", user.RoleManager,
		[]byte(`{"employee_id":"emp-1","tip_employee_id":"tip-1"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	f.service.confirmErr = mapping.ErrMappingNotFound
	resp = f.do(t, http.MethodPost, "/api/v1/integrations/square/mappings/mapping-8/confirm", user.RoleManager,
		[]byte(`{"employee_id":"emp-1"}`))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_Webhook(t *testing.T) {
	t.Run("signature is forwarded", func(t *testing.T) {
		f := newRouterFixture(t)
		req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/integrations/square/webhook", bytes.NewReader([]byte(`{"a":1}`)))
		require.NoError(t, err)
		req.Header.Set("X-Square-Hmacsha256-Signature", "sig")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "sig", f.service.gotSignature)
		assert.Equal(t, `{"a":1}`, string(f.service.gotBody))
	})

	t.Run("bad signature is 401", func(t *testing.T) {
		f := newRouterFixture(t)
		f.service.webhookErr = squaresync.ErrSignatureInvalid
		resp := f.do(t, http.MethodPost, "/api/v1/integrations/square/webhook", "", []byte(`{}`))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed payload is acknowledged", func(t *testing.T) {
		f := newRouterFixture(t)
		f.service.webhookErr = errors.New("decode webhook event: unexpected EOF")
		resp := f.do(t, http.MethodPost, "/api/v1/integrations/square/webhook", "", []byte(`{`))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRouter_Callback(t *testing.T) {
	f := newRouterFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/integrations/square/callback?code=abc&state=s", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", loc.Host)
	assert.Equal(t, "/settings/integrations/square", loc.Path)
	assert.Equal(t, "connected", loc.Query().Get("status"))

	resp = f.do(t, http.MethodGet, "/api/v1/integrations/square/callback?error=access_denied&state=s", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err = url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "error", loc.Query().Get("status"))
	assert.Equal(t, "access_denied", loc.Query().Get("reason"))

	f.service.callbackErr = squaresync.ErrInvalidOAuthState
	resp = f.do(t, http.MethodGet, "/api/v1/integrations/square/callback?code=abc&state=forged", "", nil)
	loc, err = url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "invalid_state", loc.Query().Get("reason"))

	f.service.callbackErr = connection.ErrMerchantAlreadyLinked
	resp = f.do(t, http.MethodGet, "/api/v1/integrations/square/callback?code=abc&state=s", "", nil)
	loc, err = url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "merchant_already_linked", loc.Query().Get("reason"))
}
