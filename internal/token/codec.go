// Package token encodes and decodes the signed, expiring claims behind
// access and refresh tokens. It is stateless; expiry lives inside the
// token itself and decoding is the single source of truth for it.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/goodaegwang/cirrus/internal/core"
)

// AccessClaims is the signed payload of an access token.
type AccessClaims struct {
	ClientID  string `json:"clientid"`
	UserID    string `json:"userid"`
	ServiceID string `json:"serviceid,omitempty"`
	Scope     string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the signed payload of a refresh token. Unlike access
// claims it carries no scope; the principal is re-resolved at redemption.
type RefreshClaims struct {
	ClientID  string `json:"clientid"`
	ServiceID string `json:"serviceid,omitempty"`
	UserID    string `json:"userid"`
	jwt.RegisteredClaims
}

// Codec signs and verifies token claims with a symmetric HMAC key pair.
// Signing and verification keys are configured separately so key rollover
// can stage a new signing key while the old one still verifies.
type Codec struct {
	signKey   []byte
	verifyKey []byte
	now       func() time.Time
}

// New returns a Codec. A nil now defaults to time.Now; tests inject a
// fixed clock to exercise expiry deterministically.
func New(signSecret, verifySecret string, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{
		signKey:   []byte(signSecret),
		verifyKey: []byte(verifySecret),
		now:       now,
	}
}

// EncodeAccess signs access claims for the given client and user.
// Expiry is iat + the client's access token lifetime.
func (c *Codec) EncodeAccess(client *core.Client, user *core.User) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(client.AccessTokenLifetime)

	claims := AccessClaims{
		ClientID:  client.ID,
		UserID:    user.ID,
		ServiceID: user.ServiceID,
		Scope:     user.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, exp, nil
}

// EncodeRefresh signs refresh claims for the given client and user.
func (c *Codec) EncodeRefresh(client *core.Client, user *core.User) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(client.RefreshTokenLifetime)

	claims := RefreshClaims{
		ClientID:  client.ID,
		ServiceID: user.ServiceID,
		UserID:    user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing refresh token: %w", err)
	}
	return signed, exp, nil
}

// DecodeAccess verifies signature and expiry and returns the access claims.
func (c *Codec) DecodeAccess(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := c.decode(tokenStr, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// DecodeRefresh verifies signature and expiry and returns the refresh claims.
func (c *Codec) DecodeRefresh(tokenStr string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := c.decode(tokenStr, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (c *Codec) decode(tokenStr string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.verifyKey, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenUnverifiable
	}
	return nil
}
