// Package flow sequences the stages of an OIDC authorization-code
// verification run: configuration gate, authorization URL, operator
// redirect, code exchange, token validation and token refresh. Every stage
// after the configuration gate is independently failable; failures are
// folded into the run's Report rather than raised, so a partially broken
// integration still yields a complete, ordered account of what worked.
package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/authprobe/authprobe/callback"
	"github.com/authprobe/authprobe/envcheck"
	"github.com/authprobe/authprobe/oidc"
)

// Client is the set of provider operations a run needs. *oidc.Provider
// satisfies it.
type Client interface {
	AuthURL(ctx context.Context) (string, error)
	Exchange(ctx context.Context, authorizationCode string) (*oidc.Token, error)
	ValidateAccessToken(ctx context.Context, accessToken string) (map[string]interface{}, error)
	Refresh(ctx context.Context, refreshToken string) (*oidc.Token, error)
}

// ConnectFunc creates the provider client. It's called only after the
// configuration gate passes, so no network traffic happens on a
// misconfigured run.
type ConnectFunc func(ctx context.Context) (Client, error)

// PromptFunc is the out-of-band human input boundary: it presents the
// authorization URL and blocks (with no timeout) until the operator pastes
// the resulting redirect URL back. Returning an empty string abandons the
// remaining stages, which is a valid choice, not an error.
type PromptFunc func(authURL string) (string, error)

// Runner drives one verification run. Runs are independent and stateless
// with respect to prior runs; rerunning is always safe.
type Runner struct {
	connect ConnectFunc
	prompt  PromptFunc
	logger  hclog.Logger
}

type runnerOptions struct {
	withLogger hclog.Logger
}

// Option configures a Runner.
type Option func(*runnerOptions)

// WithLogger provides an optional logger for run diagnostics.
func WithLogger(l hclog.Logger) Option {
	return func(o *runnerOptions) {
		o.withLogger = l
	}
}

// NewRunner creates a Runner from the provider factory and the operator
// input boundary.
func NewRunner(connect ConnectFunc, prompt PromptFunc, opt ...Option) (*Runner, error) {
	const op = "flow.NewRunner"
	if connect == nil {
		return nil, fmt.Errorf("%s: connect func is nil", op)
	}
	if prompt == nil {
		return nil, fmt.Errorf("%s: prompt func is nil", op)
	}
	opts := runnerOptions{}
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	if opts.withLogger == nil {
		opts.withLogger = hclog.Default().Named("flow")
	}
	return &Runner{
		connect: connect,
		prompt:  prompt,
		logger:  opts.withLogger,
	}, nil
}

// Run executes the verification flow against an already-computed
// configuration report. The returned error is reserved for unexpected,
// unclassified faults (a broken prompt, for example); every protocol-level
// failure lands in the Report instead.
func (r *Runner) Run(ctx context.Context, cfg *envcheck.Report) (*Report, error) {
	const op = "Runner.Run"
	if cfg == nil {
		return nil, fmt.Errorf("%s: configuration report is nil", op)
	}
	report := &Report{state: StateInit}

	// Hard gate: nothing runs, and no network call is made, on a
	// misconfigured environment.
	if !cfg.OK() {
		report.record(StageResult{
			Stage:  StageConfig,
			Status: StatusFailed,
			Detail: cfg.Err().Error(),
			Hint:   "fix the settings above and rerun; no network calls were made",
		})
		report.state = StateAborted
		return report, nil
	}
	detail := "all required settings present and well-formed"
	if n := len(cfg.Warnings()); n > 0 {
		detail = fmt.Sprintf("%s (%d warning(s))", detail, n)
	}
	report.record(StageResult{Stage: StageConfig, Status: StatusSuccess, Detail: detail})
	report.state = StateConfigChecked

	client, authURL, err := r.buildAuthURL(ctx)
	if err != nil {
		report.record(StageResult{
			Stage:  StageAuthURL,
			Status: StatusFailed,
			Detail: err.Error(),
			Hint:   "check the environment URL, client credentials and network reachability",
		})
		report.state = StateAborted
		return report, nil
	}
	report.authURL = authURL
	report.record(StageResult{Stage: StageAuthURL, Status: StatusSuccess, Detail: "authorization URL generated"})
	report.state = StateAuthorizationURLReady

	// The one genuine suspension point: the operator signs in out-of-band
	// and pastes the redirect back. No timeout; abandoning is legitimate.
	report.state = StateAwaitingRedirect
	redirectURL, err := r.prompt(authURL)
	if err != nil {
		return report, fmt.Errorf("%s: reading redirect URL: %w", op, err)
	}
	redirectURL = strings.TrimSpace(redirectURL)
	if redirectURL == "" {
		r.logger.Debug("no redirect supplied, skipping the remaining stages")
		report.skipRemaining("no redirect URL supplied",
			StageRedirect, StageExchange, StageValidate, StageRefresh)
		report.state = StateDone
		return report, nil
	}

	code, ok := r.parseRedirect(report, redirectURL)
	if !ok {
		// earlier stages already succeeded; the run completed with errors
		// rather than aborting
		report.skipRemaining("no authorization code", StageExchange, StageValidate, StageRefresh)
		report.state = StateDone
		return report, nil
	}
	report.state = StateCodeExtracted

	token, err := client.Exchange(ctx, code)
	if err != nil {
		report.record(StageResult{
			Stage:  StageExchange,
			Status: StatusFailed,
			Detail: err.Error(),
			Hint:   exchangeHint(err),
		})
		report.skipRemaining("no token set", StageValidate, StageRefresh)
		report.state = StateDone
		return report, nil
	}
	report.token = token
	report.record(StageResult{
		Stage:  StageExchange,
		Status: StatusSuccess,
		Detail: fmt.Sprintf("token set received, expires in %ds", token.ExpiresIn),
	})
	report.state = StateTokensExchanged

	// Validation and refresh are independent: either may fail without
	// blocking the other, and neither failure aborts the run.
	r.validateStage(ctx, client, report, token)
	r.refreshStage(ctx, client, report, token)

	report.state = StateDone
	return report, nil
}

func (r *Runner) buildAuthURL(ctx context.Context) (Client, string, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("unable to reach the authorization server: %w", err)
	}
	authURL, err := client.AuthURL(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("unable to generate the authorization URL: %w", err)
	}
	return client, authURL, nil
}

// parseRedirect folds the redirect parse outcome into the report and
// returns the authorization code when there is one.
func (r *Runner) parseRedirect(report *Report, redirectURL string) (string, bool) {
	outcome, err := callback.Parse(redirectURL)
	if err != nil {
		report.record(StageResult{
			Stage:  StageRedirect,
			Status: StatusFailed,
			Detail: err.Error(),
			Hint:   "paste the complete redirect URL from the browser's address bar",
		})
		return "", false
	}
	switch v := outcome.(type) {
	case callback.ProviderError:
		report.record(StageResult{
			Stage:  StageRedirect,
			Status: StatusFailed,
			Detail: fmt.Sprintf("provider returned an OAuth error: %s", v),
			Hint:   "this is the authorization server's answer, not a local fault; check the sign-in was completed and the client is allowed the requested scopes",
		})
		return "", false
	case callback.AuthorizationCode:
		report.record(StageResult{
			Stage:  StageRedirect,
			Status: StatusSuccess,
			Detail: "authorization code extracted",
		})
		return v.Code, true
	default:
		report.record(StageResult{
			Stage:  StageRedirect,
			Status: StatusFailed,
			Detail: fmt.Sprintf("unexpected redirect outcome %T", outcome),
		})
		return "", false
	}
}

func (r *Runner) validateStage(ctx context.Context, client Client, report *Report, token *oidc.Token) {
	claims, err := client.ValidateAccessToken(ctx, string(token.AccessToken))
	if err != nil {
		report.record(StageResult{
			Stage:  StageValidate,
			Status: StatusFailed,
			Detail: err.Error(),
			Hint:   oidc.Hint(err),
		})
		return
	}
	report.claims = claims
	report.record(StageResult{
		Stage:  StageValidate,
		Status: StatusSuccess,
		Detail: fmt.Sprintf("access token is valid, %d claim(s)", len(claims)),
	})
}

func (r *Runner) refreshStage(ctx context.Context, client Client, report *Report, token *oidc.Token) {
	if token.RefreshToken == "" {
		report.record(StageResult{
			Stage:    StageRefresh,
			Status:   StatusFailed,
			Detail:   "no refresh token was issued",
			Hint:     "request the offline_access scope, or enable refresh tokens for this client; this doesn't block the rest of the flow",
			Expected: true,
		})
		return
	}
	refreshed, err := client.Refresh(ctx, string(token.RefreshToken))
	if err != nil {
		report.record(StageResult{
			Stage:    StageRefresh,
			Status:   StatusFailed,
			Detail:   err.Error(),
			Hint:     oidc.Hint(err),
			Expected: oidc.RefreshUnsupported(err),
		})
		return
	}
	report.record(StageResult{
		Stage:  StageRefresh,
		Status: StatusSuccess,
		Detail: fmt.Sprintf("new token set received, expires in %ds", refreshed.ExpiresIn),
	})
}

func exchangeHint(err error) string {
	if h := oidc.Hint(err); h != "" {
		return h
	}
	return "codes are single-use and short-lived; also check the callback URL registration"
}
