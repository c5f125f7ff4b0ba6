package square

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OAuthService performs Square's authorization-code and refresh-token
// grants.
type OAuthService interface {
	// AuthCodeURL builds the seller authorization URL carrying state.
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string, redirectURI string) (Token, error)
	// Refresh obtains a new access token using refreshToken.
	Refresh(ctx context.Context, refreshToken string) (Token, error)
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	BaseURL      string
	HTTPClient   *http.Client
}

// Token is the result of a grant. RefreshToken is empty when Square did
// not rotate it.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	MerchantID   string
}

type OAuthServiceImpl struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func NewOAuthService(cfg OAuthConfig) OAuthService {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   baseURL + "/oauth2/authorize",
			TokenURL:  baseURL + "/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return &OAuthServiceImpl{config: config, httpClient: cfg.HTTPClient}
}

func (o *OAuthServiceImpl) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.SetAuthURLParam("session", "false"))
}

func (o *OAuthServiceImpl) Exchange(ctx context.Context, code string, redirectURI string) (Token, error) {
	var opts []oauth2.AuthCodeOption
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}

	tok, err := o.config.Exchange(o.context(ctx), code, opts...)
	if err != nil {
		return Token{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return toToken(tok)
}

func (o *OAuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if refreshToken == "" {
		return Token{}, errors.New("refresh token is empty")
	}

	src := o.config.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, fmt.Errorf("refresh access token: %w", err)
	}
	return toToken(tok)
}

func (o *OAuthServiceImpl) context(ctx context.Context) context.Context {
	if o.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	return ctx
}

// toToken reads Square's expires_at and merchant_id extras; Square does
// not send expires_in.
func toToken(tok *oauth2.Token) (Token, error) {
	if tok.AccessToken == "" {
		return Token{}, errors.New("token response has no access token")
	}

	out := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}

	if merchantID, ok := tok.Extra("merchant_id").(string); ok {
		out.MerchantID = merchantID
	}
	if out.ExpiresAt.IsZero() {
		if raw, ok := tok.Extra("expires_at").(string); ok && raw != "" {
			expiresAt, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return Token{}, fmt.Errorf("parse expires_at %q: %w", raw, err)
			}
			out.ExpiresAt = expiresAt
		}
	}

	return out, nil
}
