// Package envcheck validates the settings an OIDC authorization-code
// integration depends on: presence of the required keys, URL shape of the
// URL-valued keys, and a handful of plausibility checks on the
// authorization server URL that are reported as warnings rather than hard
// failures. Secret-shaped values are masked before they appear in any
// report.
package envcheck

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Conventional configuration keys. The source of the mapping (process
// environment, .env file, etc) is the caller's concern.
const (
	KeyEnvironmentURL = "ENVIRONMENT_URL"
	KeyClientID       = "CLIENT_ID"
	KeyClientSecret   = "CLIENT_SECRET"
	KeyCallbackURL    = "CALLBACK_URL"
	KeyAppURL         = "APP_URL"
	KeyPostLogoutURL  = "POST_LOGOUT_URL"
	KeyCookieSecure   = "COOKIE_SECURE"
)

// Status classifies a single report item.
type Status int

const (
	StatusOK Status = iota
	StatusMissing
	StatusInvalidURL
	StatusWarn
	StatusInfo
)

// String implements fmt.Stringer for rendering reports.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMissing:
		return "missing"
	case StatusInvalidURL:
		return "invalid url"
	case StatusWarn:
		return "warning"
	case StatusInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Item is a single finding about one configuration key. Display carries the
// value with secrets masked; Detail explains non-OK statuses.
type Item struct {
	Key     string
	Status  Status
	Display string
	Detail  string
}

// Report is the itemized outcome of a configuration check, ordered as the
// checks ran. Missing or malformed required settings are hard failures;
// everything else is advisory.
type Report struct {
	items []Item
	hard  *multierror.Error
}

// Items returns the ordered findings.
func (r *Report) Items() []Item { return r.items }

// OK reports whether all required settings are present and well-formed: the
// hard gate for any further flow stage.
func (r *Report) OK() bool { return r.hard.ErrorOrNil() == nil }

// Err returns the accumulated hard failures, or nil when the gate passed.
func (r *Report) Err() error { return r.hard.ErrorOrNil() }

// Warnings returns just the advisory findings.
func (r *Report) Warnings() []Item {
	var out []Item
	for _, it := range r.items {
		if it.Status == StatusWarn {
			out = append(out, it)
		}
	}
	return out
}

func (r *Report) add(it Item) { r.items = append(r.items, it) }

func (r *Report) fail(it Item, err error) {
	r.items = append(r.items, it)
	r.hard = multierror.Append(r.hard, err)
}

type options struct {
	providerDomain string
}

// Option configures a Check run.
type Option func(*options)

// WithProviderDomain sets the domain suffix the authorization server URL is
// expected to live under (e.g. "scalekit.com"). When unset, the suffix
// check is skipped; the https and localhost checks still run.
func WithProviderDomain(domain string) Option {
	return func(o *options) {
		o.providerDomain = strings.ToLower(strings.TrimSpace(domain))
	}
}

type keySpec struct {
	key      string
	required bool
	isURL    bool
}

var keySpecs = []keySpec{
	{KeyEnvironmentURL, true, true},
	{KeyClientID, true, false},
	{KeyClientSecret, true, false},
	{KeyCallbackURL, true, true},
	{KeyAppURL, false, true},
	{KeyPostLogoutURL, false, true},
}

// Check validates the configuration mapping and returns the itemized
// report. It performs no network calls and never mutates env. The caller
// decides whether to halt on Report.OK().
func Check(env map[string]string, opt ...Option) *Report {
	opts := options{}
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}

	r := &Report{}
	for _, spec := range keySpecs {
		checkKey(r, spec, env[spec.key])
	}

	checkEnvironmentURL(r, env[KeyEnvironmentURL], opts.providerDomain)
	checkCallbackURL(r, env[KeyCallbackURL], env[KeyAppURL])
	checkCookieSecure(r, env[KeyCookieSecure], env[KeyCallbackURL])
	return r
}

func checkKey(r *Report, spec keySpec, value string) {
	if value == "" {
		if spec.required {
			r.fail(Item{
				Key:    spec.key,
				Status: StatusMissing,
				Detail: "required setting is missing",
			}, fmt.Errorf("%s: missing required setting", spec.key))
			return
		}
		r.add(Item{
			Key:     spec.key,
			Status:  StatusInfo,
			Display: "(not set)",
			Detail:  "optional",
		})
		return
	}
	if spec.isURL && !isAbsoluteURL(value) {
		// present-but-malformed fails the gate even for optional keys
		r.fail(Item{
			Key:     spec.key,
			Status:  StatusInvalidURL,
			Display: Mask(spec.key, value),
			Detail:  "must be an absolute URL with a scheme and host",
		}, fmt.Errorf("%s: invalid URL format", spec.key))
		return
	}
	r.add(Item{
		Key:     spec.key,
		Status:  StatusOK,
		Display: Mask(spec.key, value),
	})
}

// checkEnvironmentURL applies domain-specific plausibility checks on the
// authorization server URL. Violations are warnings, never hard failures
// (see the report contract: only absence/malformed-ness fails the gate).
func checkEnvironmentURL(r *Report, envURL, providerDomain string) {
	if envURL == "" || !isAbsoluteURL(envURL) {
		return
	}
	u, _ := url.Parse(envURL)
	lower := strings.ToLower(envURL)

	if u.Scheme != "https" {
		r.add(Item{
			Key:    KeyEnvironmentURL,
			Status: StatusWarn,
			Detail: "authorization server URL should use HTTPS",
		})
	}
	if strings.Contains(lower, "localhost") {
		r.add(Item{
			Key:    KeyEnvironmentURL,
			Status: StatusWarn,
			Detail: "URL references localhost; this should be the provider environment URL from your dashboard",
		})
	}
	if providerDomain != "" && !strings.HasSuffix(strings.ToLower(u.Hostname()), providerDomain) {
		r.add(Item{
			Key:    KeyEnvironmentURL,
			Status: StatusWarn,
			Detail: fmt.Sprintf("URL is not under the expected provider domain %q", providerDomain),
		})
	}
}

func checkCallbackURL(r *Report, callbackURL, appURL string) {
	if callbackURL == "" || !isAbsoluteURL(callbackURL) {
		return
	}
	if appURL != "" && !strings.Contains(appURL, "localhost") && strings.Contains(callbackURL, "localhost") {
		r.add(Item{
			Key:    KeyCallbackURL,
			Status: StatusWarn,
			Detail: "callback URL uses localhost but APP_URL doesn't; make sure this matches the redirect URI registered with the provider",
		})
	}
}

func checkCookieSecure(r *Report, cookieSecure, callbackURL string) {
	if cookieSecure == "" {
		r.add(Item{
			Key:     KeyCookieSecure,
			Status:  StatusInfo,
			Display: "(not set)",
			Detail:  "optional",
		})
		return
	}
	r.add(Item{
		Key:     KeyCookieSecure,
		Status:  StatusOK,
		Display: cookieSecure,
	})
	httpsCallback := strings.HasPrefix(callbackURL, "https://") && !strings.Contains(callbackURL, "localhost")
	if strings.EqualFold(cookieSecure, "false") && httpsCallback {
		r.add(Item{
			Key:    KeyCookieSecure,
			Status: StatusWarn,
			Detail: "callback uses HTTPS but COOKIE_SECURE is false; consider COOKIE_SECURE=true for production",
		})
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Mask redacts secret-shaped values (keys containing SECRET or PASSWORD) to
// at most their first 8 characters plus an ellipsis. Other values pass
// through unchanged.
func Mask(key, value string) string {
	upper := strings.ToUpper(key)
	if !strings.Contains(upper, "SECRET") && !strings.Contains(upper, "PASSWORD") {
		return value
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
