package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role names carried in the identity token. Keep these stable; they are part
// of the identity-provider contract.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Claims is the supported claim shape of the identity token.
//
// The token arrives already verified upstream (the provider sits behind a
// trusted channel); this engine only inspects claims, so parsing is done
// without signature verification.
type Claims struct {
	jwt.RegisteredClaims

	Email      string   `json:"email"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Roles      []string `json:"roles"`
}

func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c Claims) IsAdmin() bool { return c.HasRole(RoleAdmin) }

// Token pairs the raw bearer credential with its decoded claims. Held in
// memory only; replaced wholesale on every renewal.
type Token struct {
	Raw    string
	Claims Claims
}

func (t *Token) ExpiresAt() time.Time {
	if t == nil || t.Claims.ExpiresAt == nil {
		return time.Time{}
	}
	return t.Claims.ExpiresAt.Time
}

// RemainingValidity is the time until expiry as of now; zero or negative
// means expired.
func (t *Token) RemainingValidity(now time.Time) time.Duration {
	if t == nil {
		return 0
	}
	return t.ExpiresAt().Sub(now)
}

var ErrMalformedToken = errors.New("token: malformed identity token")

// Parse decodes a raw bearer credential into a Token. An expiry claim is
// required; every renewal policy keys off it.
func Parse(raw string) (*Token, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return nil, ErrMalformedToken
	}
	if claims.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}
	return &Token{Raw: raw, Claims: claims}, nil
}
