package oidc

import (
	"context"
	"fmt"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// Provider provides integration with a provider using the typical 3-legged
// OIDC authorization code flow.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	logger   hclog.Logger

	// endSessionEndpoint is the provider's RP-initiated logout endpoint
	// from discovery metadata; empty when the provider doesn't publish one.
	endSessionEndpoint string
}

// providerDiscoveryClaims are the discovery metadata claims the provider
// surfaces beyond what go-oidc exposes directly.
type providerDiscoveryClaims struct {
	EndSessionEndpoint string `json:"end_session_endpoint"`
}

// NewProvider creates and initializes a Provider for the OIDC authorization
// code flow. Initializing the provider includes making an http request to
// the issuer's discovery endpoint, so a successful return also confirms the
// authorization server is reachable.
func NewProvider(ctx context.Context, c *Config) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	provider, err := oidc.NewProvider(HTTPClientContext(ctx, client), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	p := &Provider{
		config:   c,
		provider: provider,
		logger:   c.logger(),
	}

	var discovered providerDiscoveryClaims
	if err := provider.Claims(&discovered); err == nil {
		p.endSessionEndpoint = discovered.EndSessionEndpoint
	}
	return p, nil
}

// oauth2Config assembles an OpenID Connect aware oauth2 client config,
// passing the configured client id, redirect URL and scopes through
// unchanged. The required "openid" scope is always included.
func (p *Provider) oauth2Config() oauth2.Config {
	scopes := append([]string{oidc.ScopeOpenID}, p.config.Scopes...)
	return oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       scopes,
	}
}

// requestCtx returns a ctx carrying the configured http client, so both
// go-oidc and oauth2 use it for provider requests.
func (p *Provider) requestCtx(ctx context.Context) (context.Context, error) {
	client, err := p.config.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create http client: %w", err)
	}
	return HTTPClientContext(ctx, client), nil
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with the provider. A fresh state and nonce are
// generated for each call.
func (p *Provider) AuthURL(ctx context.Context) (string, error) {
	const op = "Provider.AuthURL"
	state, err := NewID("st")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate state: %w", op, err)
	}
	nonce, err := NewID("n")
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate nonce: %w", op, err)
	}
	oauth2Config := p.oauth2Config()
	return oauth2Config.AuthCodeURL(state, oidc.Nonce(nonce)), nil
}

// LogoutURL generates an RP-initiated logout URL from the provider's
// discovered end_session_endpoint. The idTokenHint is optional and may be
// empty, which is the typical case when probing logout without a live
// session. Fails with ErrLogoutUnsupported when the provider publishes no
// end-session endpoint.
func (p *Provider) LogoutURL(ctx context.Context, postLogoutRedirect string, idTokenHint string) (string, error) {
	const op = "Provider.LogoutURL"
	if p.endSessionEndpoint == "" {
		return "", fmt.Errorf("%s: %w", op, ErrLogoutUnsupported)
	}
	u, err := url.Parse(p.endSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("%s: end_session_endpoint %q is invalid: %w", op, p.endSessionEndpoint, err)
	}
	q := u.Query()
	q.Set("client_id", p.config.ClientID)
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Exchange will request a token set from the provider's token endpoint
// using an authorization code received in an earlier authentication
// response. Exactly one network exchange is made; the provider never
// retries since authorization codes are single-use and a blind retry would
// itself fail.
func (p *Provider) Exchange(ctx context.Context, authorizationCode string) (*Token, error) {
	const op = "Provider.Exchange"
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	oidcCtx, err := p.requestCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	oauth2Config := p.oauth2Config()
	oauth2Token, err := oauth2Config.Exchange(oidcCtx, authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	t, err := NewToken(oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token set: %w", op, err)
	}
	p.logger.Debug("authorization code exchanged", "expires_in", t.ExpiresIn, "refresh_token_issued", t.RefreshToken != "")
	return t, nil
}

// ValidateAccessToken validates the access token against the provider's
// published signing keys and returns the full claim mapping, unfiltered.
// It is a thin, fail-fast gate: one verification call delegated to the
// provider's keyset, with the expiry and issuer checks that implies.
// Malformed, expired or unverifiable tokens fail with ErrInvalidToken.
func (p *Provider) ValidateAccessToken(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	const op = "Provider.ValidateAccessToken"
	if accessToken == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	// Access tokens don't carry the relying party audience contract an
	// id_token does, so the client id check is skipped.
	verifier := p.provider.Verifier(&oidc.Config{
		SupportedSigningAlgs: algs,
		SkipClientIDCheck:    true,
	})
	verified, err := verifier.Verify(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}
	var claims map[string]interface{}
	if err := verified.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to decode verified claims: %w", op, err)
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new token set. Refresh may
// legitimately be unsupported for the client; use RefreshUnsupported to
// distinguish that expected condition from a credential or transport
// failure.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	const op = "Provider.Refresh"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrRefreshUnsupported)
	}
	oidcCtx, err := p.requestCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	oauth2Config := p.oauth2Config()
	src := oauth2Config.TokenSource(oidcCtx, &oauth2.Token{RefreshToken: refreshToken})
	oauth2Token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to refresh token with provider: %w", op, err)
	}
	t, err := NewToken(oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token set: %w", op, err)
	}
	p.logger.Debug("token refreshed", "expires_in", t.ExpiresIn)
	return t, nil
}
