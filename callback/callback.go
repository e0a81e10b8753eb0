// Package callback parses the redirect (callback) URL an OIDC provider
// sends the operator back to after authentication, yielding either the
// authorization code or the provider's OAuth error response.
package callback

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrUnparsableURL means the input isn't a syntactically valid absolute
	// URL at all.
	ErrUnparsableURL = errors.New("redirect is not a parsable absolute URL")

	// ErrMalformedRedirect means the URL parsed, but its query carried
	// neither a code nor an error, so it isn't a valid OAuth redirect.
	ErrMalformedRedirect = errors.New("redirect contains neither a code nor an error")
)

// Outcome is the result of parsing a redirect URL: either an
// AuthorizationCode or a ProviderError.
type Outcome interface {
	outcome()
}

// AuthorizationCode is a successful authentication response carrying the
// single-use authorization code.
type AuthorizationCode struct {
	Code string
}

func (AuthorizationCode) outcome() {}

// ProviderError is an explicit OAuth error response from the authorization
// server. It's a protocol-level answer, not a local parsing fault.
type ProviderError struct {
	Err         string
	Description string
}

func (ProviderError) outcome() {}

func (e ProviderError) String() string {
	if e.Description == "" {
		return e.Err
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Description)
}

// Parse extracts the authorization response from a redirect URL's query
// parameters. An error parameter takes precedence over a code: providers
// may attach both in edge cases, and a stale code next to an explicit error
// must not be treated as success.
func Parse(redirectURL string) (Outcome, error) {
	const op = "callback.Parse"
	u, err := url.Parse(redirectURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: %q: %w", op, redirectURL, ErrUnparsableURL)
	}
	q := u.Query()

	if oauthErr := q.Get("error"); oauthErr != "" {
		return ProviderError{
			Err:         oauthErr,
			Description: q.Get("error_description"),
		}, nil
	}
	if code := q.Get("code"); code != "" {
		return AuthorizationCode{Code: code}, nil
	}
	return nil, fmt.Errorf("%s: %w", op, ErrMalformedRedirect)
}
