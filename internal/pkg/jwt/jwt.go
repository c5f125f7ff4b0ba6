package jwt

import (
	"errors"
	"time"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	tokenTypeAccess     = "access"
	tokenTypeOAuthState = "square_oauth_state"

	oauthStateTTL = 10 * time.Minute
	clockSkew     = 30 * time.Second
)

var ErrInvalidState = errors.New("invalid oauth state")

type Service interface {
	GenerateAccessToken(userID string, companyID string, role user.Role) (token string, expiresAt int64, err error)
	// GenerateOAuthState signs the company and user starting a Square
	// authorization so the public callback can trust them.
	GenerateOAuthState(companyID string, userID string) (string, error)
	ValidateOAuthState(state string) (companyID string, userID string, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpiration time.Duration
	tokenAuth             *jwtauth.JWTAuth
	now                   func() time.Time
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpiration time.Duration) Service {
	if accessTokenExpiration <= 0 {
		accessTokenExpiration = 15 * time.Minute
	}
	return &JWTService{
		accessTokenExpiration: accessTokenExpiration,
		tokenAuth:             jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(clockSkew)),
		now:                   time.Now,
	}
}

// GenerateAccessToken issues the same claim set the main suite issues.
func (j *JWTService) GenerateAccessToken(userID string, companyID string, role user.Role) (token string, expiresAt int64, err error) {
	expiresAt = j.now().Add(j.accessTokenExpiration).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    userID,
		"company_id": companyID,
		"role":       string(role),
		"type":       tokenTypeAccess,
		"exp":        expiresAt,
	})
	return tokenString, expiresAt, err
}

func (j *JWTService) GenerateOAuthState(companyID string, userID string) (string, error) {
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"company_id": companyID,
		"user_id":    userID,
		"type":       tokenTypeOAuthState,
		"exp":        j.now().Add(oauthStateTTL).Unix(),
	})
	return tokenString, err
}

// ValidateOAuthState returns the company and user the state was issued for.
// Decode only checks the signature, so expiry is validated here.
func (j *JWTService) ValidateOAuthState(state string) (companyID string, userID string, err error) {
	token, err := j.tokenAuth.Decode(state)
	if err != nil {
		return "", "", ErrInvalidState
	}
	if err := jwt.Validate(token, jwt.WithClock(jwt.ClockFunc(j.now)), jwt.WithAcceptableSkew(clockSkew)); err != nil {
		return "", "", ErrInvalidState
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != tokenTypeOAuthState {
		return "", "", ErrInvalidState
	}

	companyID, ok = stringClaim(token, "company_id")
	if !ok || companyID == "" {
		return "", "", ErrInvalidState
	}
	userID, _ = stringClaim(token, "user_id")

	return companyID, userID, nil
}

func stringClaim(token jwt.Token, name string) (string, bool) {
	v, ok := token.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
