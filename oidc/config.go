package oidc

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
)

// ClientSecret is a relying party client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client
// secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (s ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret.
func (s ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration for a typical 3-legged OIDC
// authorization code flow.
type Config struct {
	// Issuer is the authorization server's environment URL: a
	// case-sensitive URL using the https scheme that contains scheme, host,
	// and optionally port and path components, and no query or fragment
	// components.
	Issuer string

	// ClientID is the relying party id.
	ClientID string

	// ClientSecret is the relying party secret. It is redacted whenever
	// printed or marshaled.
	ClientSecret ClientSecret

	// RedirectURL is the callback URL registered with the provider, used as
	// the redirect after the user completes authentication.
	RedirectURL string

	// Scopes is a list of oidc scopes to request of the provider. The
	// required "openid" scope is always requested and doesn't need to be
	// part of this optional list.
	Scopes []string

	// SupportedSigningAlgs is a list of signing algorithms accepted when
	// verifying provider-issued tokens. Defaults to RS256.
	SupportedSigningAlgs []Alg

	// Audiences is an optional list of case-sensitive strings used when
	// verifying an id_token's "aud" claim.
	Audiences []string

	// ProviderCA is an optional CA cert PEM to use when sending requests to
	// the provider. When empty, the system CA chain is used.
	ProviderCA string

	// RoundTripper is an optional http.RoundTripper, overriding the
	// transport built from ProviderCA. Mostly useful for tests.
	RoundTripper http.RoundTripper

	// Logger is an optional hclog.Logger for provider diagnostics. Secrets
	// are never logged unredacted.
	Logger hclog.Logger
}

// NewConfig composes a new config for a provider. The "openid" scope is
// always requested in addition to any optional scopes provided.
//
// Supported options: WithScopes, WithSupportedSigningAlgs, WithAudiences,
// WithProviderCA, WithRoundTripper, WithLogger.
func NewConfig(issuer string, clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:               issuer,
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		RedirectURL:          redirectURL,
		Scopes:               opts.withScopes,
		SupportedSigningAlgs: opts.withSupportedSigningAlgs,
		Audiences:            opts.withAudiences,
		ProviderCA:           opts.withProviderCA,
		RoundTripper:         opts.withRoundTripper,
		Logger:               opts.withLogger,
	}
	if len(c.SupportedSigningAlgs) == 0 {
		c.SupportedSigningAlgs = []Alg{RS256}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration. It verifies required fields are
// present and that the issuer and redirect URLs parse as absolute URLs, but
// it doesn't verify the issuer is discoverable via an http request.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter)
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	if err := validateAbsoluteURL(c.Issuer); err != nil {
		return fmt.Errorf("%s: issuer %q: %w", op, c.Issuer, err)
	}
	if err := validateAbsoluteURL(c.RedirectURL); err != nil {
		return fmt.Errorf("%s: redirect URL %q: %w", op, c.RedirectURL, err)
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			return fmt.Errorf("%s: unsupported algorithm %q: %w", op, a, ErrInvalidParameter)
		}
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is empty: %w", ErrInvalidParameter)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url is unparsable: %w", ErrInvalidParameter)
	}
	switch {
	case u.Scheme != "https" && u.Scheme != "http":
		return fmt.Errorf("url scheme %q is not http or https: %w", u.Scheme, ErrInvalidParameter)
	case u.Host == "":
		return fmt.Errorf("url has no host: %w", ErrInvalidParameter)
	}
	return nil
}

// HTTPClient returns a new http client for the configured provider, using
// the optional ProviderCA (or RoundTripper override) when set and the
// installed system CA chain otherwise.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	if c.RoundTripper != nil {
		return &http.Client{Transport: c.RoundTripper}, nil
	}
	tr := cleanhttp.DefaultPooledTransport()
	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}
	return &http.Client{Transport: tr}, nil
}

// logger returns the configured logger or a named default.
func (c *Config) logger() hclog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return hclog.Default().Named("oidc")
}

// HTTPClientContext returns a new Context carrying the provided HTTP
// client. It sets the same context key used by the
// github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
var HTTPClientContext = oidc.ClientContext

// configOptions is the set of available options for Config functions.
type configOptions struct {
	withScopes               []string
	withSupportedSigningAlgs []Alg
	withAudiences            []string
	withProviderCA           string
	withRoundTripper         http.RoundTripper
	withLogger               hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the config defaults and applies the opt overrides
// passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides optional scopes for the provider's config. The
// "openid" scope is requested regardless.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithSupportedSigningAlgs provides the signing algorithms accepted when
// verifying provider-issued tokens.
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSupportedSigningAlgs = algs
		}
	}
}

// WithAudiences provides an optional list of audiences for the provider's
// config.
func WithAudiences(auds ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAudiences = auds
		}
	}
}

// WithProviderCA provides an optional CA cert PEM for the provider's
// config.
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithRoundTripper provides an optional http.RoundTripper for the
// provider's config.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withRoundTripper = rt
		}
	}
}

// WithLogger provides an optional logger for the provider's config.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLogger = l
		}
	}
}
