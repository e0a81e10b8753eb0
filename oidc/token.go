package oidc

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/oauth2"
)

// User is the projection of the authenticated subject's standard OIDC
// claims, decoded from the id_token when one is present. Optional claims
// the provider didn't embed are left at their zero values.
type User struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
}

// Token is the token set produced by a successful authorization code
// exchange or refresh. It is immutable once returned and is never persisted
// by this package. The token fields redact themselves when printed or
// marshaled.
type Token struct {
	// AccessToken is the provider-issued access token.
	AccessToken AccessToken

	// RefreshToken is optional; some providers don't issue one unless the
	// offline_access scope was granted.
	RefreshToken RefreshToken

	// IDToken is optional on refresh responses.
	IDToken IDToken

	// ExpiresIn is the access token's remaining lifetime in seconds,
	// positive on success.
	ExpiresIn int

	// Expiry is the access token's expiration time.
	Expiry time.Time

	// User is the subject projection decoded from the IDToken, when one was
	// issued.
	User User
}

// NewToken creates a token set from an oauth2 exchange or refresh result.
// The access token is required, everything else depends on what the
// provider issued.
func NewToken(t *oauth2.Token) (*Token, error) {
	const op = "oidc.NewToken"
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("%s: access_token is missing: %w", op, ErrInvalidParameter)
	}
	tk := &Token{
		AccessToken:  AccessToken(t.AccessToken),
		RefreshToken: RefreshToken(t.RefreshToken),
		Expiry:       t.Expiry,
		ExpiresIn:    expiresIn(t),
	}
	if id, ok := t.Extra("id_token").(string); ok && id != "" {
		tk.IDToken = IDToken(id)
		if err := tk.IDToken.Claims(&tk.User); err != nil {
			return nil, fmt.Errorf("%s: unable to decode user claims: %w", op, err)
		}
	}
	return tk, nil
}

// expiresIn prefers the provider-reported expires_in value and falls back
// to the computed expiry.
func expiresIn(t *oauth2.Token) int {
	switch v := t.Extra("expires_in").(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	}
	if t.Expiry.IsZero() {
		return 0
	}
	return int(math.Round(time.Until(t.Expiry).Seconds()))
}

// Valid reports whether the token set carries an unexpired access token.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return t.Expiry.After(time.Now())
}

// StaticTokenSource returns a TokenSource that always returns the same
// token, handy for packages (like the oauth2 userinfo helpers) that expect
// an oauth2.TokenSource.
func (t *Token) StaticTokenSource() oauth2.TokenSource {
	if t == nil {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(t.AccessToken)})
}
