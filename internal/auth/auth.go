package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrAuth    = errors.New("authentication failed")
	ErrTimeout = errors.New("authentication timed out")
)

// Provider is the backend auth surface.
type Provider interface {
	// SignInAnonymously acquires a session credential.
	SignInAnonymously(ctx context.Context) (string, error)
	// SignOut invalidates the given credential.
	SignOut(ctx context.Context, token string) error
}

// Credential is the opaque session token plus whatever claims could be read
// from it. Tokens that are not JWTs carry no claims.
type Credential struct {
	Token     string
	UID       string
	ExpiresAt time.Time
}

// ParseCredential reads sub and exp from a JWT without verifying the
// signature; the backend is the only party holding the key.
func ParseCredential(token string) Credential {
	c := Credential{Token: token}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return c
	}

	if sub, err := claims.GetSubject(); err == nil {
		c.UID = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c
}

// Expired reports whether the credential carries an expiry that has passed.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
