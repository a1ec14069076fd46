package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/model"
)

// Claims extends JWT standard claims with the session binding.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string     `json:"account_id"`
	SessionID string     `json:"session_id,omitempty"`
	Role      model.Role `json:"role"`
}

// TokenManager signs and verifies session-bound access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager from configuration.
func NewTokenManager(cfg *config.Config) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		expiry: cfg.JWTExpiry,
		now:    time.Now,
	}
}

// Issue signs a token for the session. The token never outlives the session:
// its expiry is the earlier of the configured lifetime and sessionExpires.
func (m *TokenManager) Issue(accountID, sessionID string, role model.Role, sessionExpires time.Time) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.expiry)
	if !sessionExpires.IsZero() && sessionExpires.Before(expires) {
		expires = sessionExpires
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		AccountID: accountID,
		SessionID: sessionID,
		Role:      role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies a token and returns its claims. Expired tokens yield
// ErrTokenExpired, every other verification failure ErrInvalidToken.
func (m *TokenManager) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrNoToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims.AccountID == "" || claims.AccountID != claims.Subject || !claims.Role.Valid() {
		return nil, ErrInvalidPayload
	}
	return claims, nil
}
