package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/authprobe/authprobe/envcheck"
	"github.com/authprobe/authprobe/oidc"
)

// fakeClient is a canned Client implementation for driving the runner
// through every stage outcome without a live provider.
type fakeClient struct {
	authURLErr  error
	exchangeErr error
	validateErr error
	refreshErr  error
	token       *oidc.Token
	claims      map[string]interface{}

	exchangedCode string
	validateCalls int
	refreshCalls  int
}

func (f *fakeClient) AuthURL(ctx context.Context) (string, error) {
	if f.authURLErr != nil {
		return "", f.authURLErr
	}
	return "https://idp.example/auth?client_id=test-client-id&state=st_1", nil
}

func (f *fakeClient) Exchange(ctx context.Context, code string) (*oidc.Token, error) {
	f.exchangedCode = code
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeClient) ValidateAccessToken(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	f.validateCalls++
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	return f.claims, nil
}

func (f *fakeClient) Refresh(ctx context.Context, refreshToken string) (*oidc.Token, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.token, nil
}

func testToken() *oidc.Token {
	return &oidc.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		IDToken:      "test-id-token",
		ExpiresIn:    3600,
	}
}

func testOKConfig(t *testing.T) *envcheck.Report {
	t.Helper()
	r := envcheck.Check(map[string]string{
		envcheck.KeyEnvironmentURL: "https://env.example.scalekit.com",
		envcheck.KeyClientID:       "skc_test",
		envcheck.KeyClientSecret:   "sk_live_secret_value",
		envcheck.KeyCallbackURL:    "https://app.example/cb",
	})
	require.True(t, r.OK())
	return r
}

func testBadConfig(t *testing.T) *envcheck.Report {
	t.Helper()
	r := envcheck.Check(map[string]string{
		envcheck.KeyEnvironmentURL: "https://env.example.scalekit.com",
	})
	require.False(t, r.OK())
	return r
}

// newTestRunner wires a runner around the fake client, counting connect
// calls so tests can assert the configuration gate blocks network use.
func newTestRunner(t *testing.T, client *fakeClient, redirectURL string, connectCalls *int) *Runner {
	t.Helper()
	connect := func(ctx context.Context) (Client, error) {
		if connectCalls != nil {
			*connectCalls++
		}
		return client, nil
	}
	prompt := func(authURL string) (string, error) {
		require.NotEmpty(t, authURL)
		return redirectURL, nil
	}
	r, err := NewRunner(connect, prompt)
	require.NoError(t, err)
	return r
}

func findStage(t *testing.T, report *Report, stage string) StageResult {
	t.Helper()
	for _, res := range report.Results() {
		if res.Stage == stage {
			return res
		}
	}
	t.Fatalf("stage %q not found in report", stage)
	return StageResult{}
}

func TestNewRunner(t *testing.T) {
	t.Parallel()
	connect := func(ctx context.Context) (Client, error) { return &fakeClient{}, nil }
	prompt := func(string) (string, error) { return "", nil }

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		r, err := NewRunner(connect, prompt)
		require.NoError(t, err)
		assert.NotNil(t, r)
	})
	t.Run("nil-connect", func(t *testing.T) {
		t.Parallel()
		_, err := NewRunner(nil, prompt)
		assert.Error(t, err)
	})
	t.Run("nil-prompt", func(t *testing.T) {
		t.Parallel()
		_, err := NewRunner(connect, nil)
		assert.Error(t, err)
	})
}

func TestRunner_Run_AllStagesSucceed(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	client := &fakeClient{
		token:  testToken(),
		claims: map[string]interface{}{"sub": "usr_1234567890", "email": "alice@example.com"},
	}
	r := newTestRunner(t, client, "https://app.example/cb?code=test-auth-code&state=st_1", nil)

	report, err := r.Run(context.Background(), testOKConfig(t))
	require.NoError(err)
	require.NotNil(report)

	assert.Equal(StateDone, report.State())
	assert.True(report.Succeeded())
	assert.Equal("test-auth-code", client.exchangedCode)
	assert.NotEmpty(report.AuthURL())
	assert.Equal(client.token, report.Token())
	assert.Equal(client.claims, report.Claims())

	for _, stage := range []string{StageConfig, StageAuthURL, StageRedirect, StageExchange, StageValidate, StageRefresh} {
		res := findStage(t, report, stage)
		assert.Equal(StatusSuccess, res.Status, "stage %q", stage)
	}
}

func TestRunner_Run_ConfigGateAborts(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	var connectCalls int
	client := &fakeClient{token: testToken()}
	r := newTestRunner(t, client, "https://app.example/cb?code=c", &connectCalls)

	report, err := r.Run(context.Background(), testBadConfig(t))
	require.NoError(err)

	assert.Equal(StateAborted, report.State())
	assert.False(report.Succeeded())
	assert.Zero(connectCalls, "no network activity on a misconfigured run")

	res := findStage(t, report, StageConfig)
	assert.Equal(StatusFailed, res.Status)
	assert.Contains(res.Detail, envcheck.KeyClientID)
	require.Len(report.Results(), 1)
}

func TestRunner_Run_ConnectFailureAborts(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	connect := func(ctx context.Context) (Client, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	prompt := func(string) (string, error) {
		t.Fatal("prompt must not run when the authorization URL stage fails")
		return "", nil
	}
	r, err := NewRunner(connect, prompt)
	require.NoError(err)

	report, err := r.Run(context.Background(), testOKConfig(t))
	require.NoError(err)

	assert.Equal(StateAborted, report.State())
	res := findStage(t, report, StageAuthURL)
	assert.Equal(StatusFailed, res.Status)
	assert.Contains(res.Detail, "connection refused")
}

func TestRunner_Run_AbandonedPrompt(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	client := &fakeClient{token: testToken()}
	r := newTestRunner(t, client, "  \n", nil) // whitespace-only counts as abandoned

	report, err := r.Run(context.Background(), testOKConfig(t))
	require.NoError(err)

	// abandoning is a valid run, not a failure
	assert.Equal(StateDone, report.State())
	assert.True(report.Succeeded())
	for _, stage := range []string{StageRedirect, StageExchange, StageValidate, StageRefresh} {
		res := findStage(t, report, stage)
		assert.Equal(StatusSkipped, res.Status, "stage %q", stage)
	}
	assert.Empty(client.exchangedCode)
}

func TestRunner_Run_PromptError(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	connect := func(ctx context.Context) (Client, error) { return &fakeClient{}, nil }
	prompt := func(string) (string, error) { return "", errors.New("stdin closed") }
	r, err := NewRunner(connect, prompt)
	require.NoError(err)

	_, err = r.Run(context.Background(), testOKConfig(t))
	require.Error(err)
	require.Contains(err.Error(), "stdin closed")
}

func TestRunner_Run_ProviderErrorRedirect(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	client := &fakeClient{token: testToken()}
	r := newTestRunner(t, client,
		"https://app.example/cb?error=access_denied&error_description=user+cancelled", nil)

	report, err := r.Run(context.Background(), testOKConfig(t))
	require.NoError(err)

	assert.Equal(StateDone, report.State())
	res := findStage(t, report, StageRedirect)
	assert.Equal(StatusFailed, res.Status)
	assert.Contains(res.Detail, "access_denied")
	for _, stage := range []string{StageExchange, StageValidate, StageRefresh} {
		assert.Equal(StatusSkipped, findStage(t, report, stage).Status, "stage %q", stage)
	}
	assert.Empty(client.exchangedCode)
}

func TestRunner_Run_UnparsableRedirect(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	client := &fakeClient{token: testToken()}
	r := newTestRunner(t, client, "not a url at all", nil)

	report, err := r.Run(context.Background(), testOKConfig(t))
	require.NoError(err)

	res := findStage(t, report, StageRedirect)
	assert.Equal(StatusFailed, res.Status)
	assert.NotEmpty(res.Hint)
	assert.Equal(StatusSkipped, findStage(t, report, StageExchange).Status)
}

func TestRunner_Run_ExchangeFailureSkipsDependents(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	client := &fakeClient{
		exchangeErr: &oauth2.RetrieveError{ErrorCode: "invalid_grant"},
	}
	r := newTestRunner(t, client, "https://app.example/cb?code=stale-code", nil)

	report, err := r.Run(context.Background(), testOKConfig(t))
	require.NoError(err)

	assert.Equal(StateDone, report.State())
	res := findStage(t, report, StageExchange)
	assert.Equal(StatusFailed, res.Status)
	assert.Contains(res.Hint, "single-use")
	assert.Equal(StatusSkipped, findStage(t, report, StageValidate).Status)
	assert.Equal(StatusSkipped, findStage(t, report, StageRefresh).Status)
	assert.Zero(client.validateCalls)
	assert.Zero(client.refreshCalls)
}

func TestRunner_Run_ValidateAndRefreshAreIndependent(t *testing.T) {
	t.Parallel()
	t.Run("validate-fails-refresh-still-runs", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)

		client := &fakeClient{
			token:       testToken(),
			validateErr: oidc.ErrInvalidToken,
		}
		r := newTestRunner(t, client, "https://app.example/cb?code=test-auth-code", nil)

		report, err := r.Run(context.Background(), testOKConfig(t))
		require.NoError(err)

		assert.Equal(StatusFailed, findStage(t, report, StageValidate).Status)
		assert.Equal(StatusSuccess, findStage(t, report, StageRefresh).Status)
		assert.Equal(1, client.refreshCalls)
		assert.True(report.Succeeded())
	})
	t.Run("refresh-fails-validate-still-ran", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)

		client := &fakeClient{
			token:      testToken(),
			claims:     map[string]interface{}{"sub": "usr_1234567890"},
			refreshErr: errors.New("unexpected transport failure"),
		}
		r := newTestRunner(t, client, "https://app.example/cb?code=test-auth-code", nil)

		report, err := r.Run(context.Background(), testOKConfig(t))
		require.NoError(err)

		assert.Equal(StatusSuccess, findStage(t, report, StageValidate).Status)
		res := findStage(t, report, StageRefresh)
		assert.Equal(StatusFailed, res.Status)
		assert.False(res.Expected)
		assert.True(report.Succeeded())
	})
}

func TestRunner_Run_RefreshUnsupportedIsExpected(t *testing.T) {
	t.Parallel()
	t.Run("provider-rejects-grant", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)

		client := &fakeClient{
			token:      testToken(),
			claims:     map[string]interface{}{"sub": "usr_1234567890"},
			refreshErr: &oauth2.RetrieveError{ErrorCode: "unsupported_grant_type"},
		}
		r := newTestRunner(t, client, "https://app.example/cb?code=test-auth-code", nil)

		report, err := r.Run(context.Background(), testOKConfig(t))
		require.NoError(err)

		res := findStage(t, report, StageRefresh)
		assert.Equal(StatusFailed, res.Status)
		assert.True(res.Expected)
		assert.True(report.Succeeded())
	})
	t.Run("no-refresh-token-issued", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)

		token := testToken()
		token.RefreshToken = ""
		client := &fakeClient{
			token:  token,
			claims: map[string]interface{}{"sub": "usr_1234567890"},
		}
		r := newTestRunner(t, client, "https://app.example/cb?code=test-auth-code", nil)

		report, err := r.Run(context.Background(), testOKConfig(t))
		require.NoError(err)

		res := findStage(t, report, StageRefresh)
		assert.Equal(StatusFailed, res.Status)
		assert.True(res.Expected)
		assert.Contains(res.Detail, "no refresh token")
		assert.Zero(client.refreshCalls, "refresh isn't attempted without a refresh token")
		assert.True(report.Succeeded())
	})
}

func TestRunner_Run_NilConfigReport(t *testing.T) {
	t.Parallel()
	client := &fakeClient{token: testToken()}
	r := newTestRunner(t, client, "https://app.example/cb?code=c", nil)

	_, err := r.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestState_String(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("init", StateInit.String())
	assert.Equal("done", StateDone.String())
	assert.Equal("aborted", StateAborted.String())
	assert.Equal("unknown", State(99).String())
}

func TestStatus_String(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("success", StatusSuccess.String())
	assert.Equal("skipped", StatusSkipped.String())
	assert.Equal("failed", StatusFailed.String())
	assert.Equal("unknown", Status(99).String())
}
