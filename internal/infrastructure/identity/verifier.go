package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/portfolio-api/internal/domain"
)

// Claims is the subset of the provider's access-token payload this service
// reads. The provider signs its tokens with a shared HS256 secret.
type Claims struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the token subject.
func (c *Claims) AccountID() string { return c.Subject }

// TokenVerifier authenticates provider-issued bearer tokens. With a shared
// JWT secret configured it verifies signatures locally; without one it falls
// back to asking the provider's userinfo endpoint, which costs a round trip
// per request but needs no shared key material.
type TokenVerifier struct {
	secret   []byte
	provider Provider
}

func NewTokenVerifier(jwtSecret string, provider Provider) *TokenVerifier {
	var secret []byte
	if jwtSecret != "" {
		secret = []byte(jwtSecret)
	}
	return &TokenVerifier{secret: secret, provider: provider}
}

// Verify returns the claims for a valid access token.
func (v *TokenVerifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	if v.secret != nil {
		return v.verifyLocal(tokenStr)
	}
	return v.verifyRemote(ctx, tokenStr)
}

func (v *TokenVerifier) verifyLocal(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

func (v *TokenVerifier) verifyRemote(ctx context.Context, tokenStr string) (*Claims, error) {
	acct, err := v.provider.GetAccount(ctx, tokenStr)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	c := &Claims{Email: acct.Email, Phone: acct.Phone}
	c.Subject = acct.ID
	return c, nil
}
