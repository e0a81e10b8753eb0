package oidc

import (
	"errors"

	"golang.org/x/oauth2"
)

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNilParameter       = errors.New("nil parameter")
	ErrInvalidCACert      = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed  = errors.New("id generation failed")
	ErrMissingIDToken     = errors.New("id_token is missing")
	ErrInvalidToken       = errors.New("invalid token")
	ErrLogoutUnsupported  = errors.New("provider does not publish an end_session_endpoint")
	ErrRefreshUnsupported = errors.New("refresh tokens are not supported for this client")
)

// Hint returns a short, actionable suggestion for a failed provider
// operation, distinguishing integrator mistakes from expected conditions.
// It returns an empty string when there's nothing useful to add.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrRefreshUnsupported):
		return "refresh tokens may be disabled for this client; this is expected for some configurations"
	case errors.Is(err, ErrLogoutUnsupported):
		return "the provider publishes no end_session_endpoint; logout must be handled by the application"
	case errors.Is(err, ErrMissingIDToken):
		return "make sure the openid scope is requested and the client is configured for OIDC"
	case errors.Is(err, ErrInvalidToken):
		return "the token is malformed, expired, or wasn't issued by this provider"
	}

	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		switch rErr.ErrorCode {
		case "invalid_grant":
			return "authorization codes are single-use and short-lived; restart the flow for a fresh code"
		case "invalid_client", "unauthorized_client":
			return "check the client id and client secret"
		case "invalid_request":
			return "check that the callback URL exactly matches the one registered with the provider"
		case "unsupported_grant_type":
			return "the grant type is disabled for this client"
		}
	}
	return ""
}

// RefreshUnsupported reports whether a refresh failure means the provider
// or client configuration doesn't support refresh tokens at all, as opposed
// to a credential or transport fault. Callers treat this as an expected,
// non-fatal condition.
func RefreshUnsupported(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRefreshUnsupported) {
		return true
	}
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		return rErr.ErrorCode == "unsupported_grant_type"
	}
	return false
}
