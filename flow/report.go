package flow

import (
	"github.com/authprobe/authprobe/oidc"
)

// State identifies where the verification run is in its lifecycle. The run
// only ever moves forward; Aborted is terminal and reachable from any state
// on a hard-gate failure.
type State int

const (
	StateInit State = iota
	StateConfigChecked
	StateAuthorizationURLReady
	StateAwaitingRedirect
	StateCodeExtracted
	StateTokensExchanged
	StateDone
	StateAborted
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConfigChecked:
		return "config checked"
	case StateAuthorizationURLReady:
		return "authorization url ready"
	case StateAwaitingRedirect:
		return "awaiting redirect"
	case StateCodeExtracted:
		return "code extracted"
	case StateTokensExchanged:
		return "tokens exchanged"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Stage names, in flow order.
const (
	StageConfig   = "configuration"
	StageAuthURL  = "authorization url"
	StageRedirect = "redirect"
	StageExchange = "token exchange"
	StageValidate = "token validation"
	StageRefresh  = "token refresh"
)

// Status is a single stage's outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageResult records one stage's outcome. Hint carries a short actionable
// suggestion for failures; Expected marks failures that are known,
// acceptable conditions (e.g. refresh disabled for the client) which don't
// count against the run.
type StageResult struct {
	Stage    string
	Status   Status
	Detail   string
	Hint     string
	Expected bool
}

// Report is the ordered, accumulated account of a verification run. It's
// consumed for final reporting only; stages never consult it for control
// decisions.
type Report struct {
	results []StageResult
	state   State

	authURL string
	token   *oidc.Token
	claims  map[string]interface{}
}

// Results returns the per-stage outcomes in the order the stages ran.
func (r *Report) Results() []StageResult { return r.results }

// State returns the run's final state.
func (r *Report) State() State { return r.state }

// AuthURL returns the generated authorization URL, when the run got that
// far.
func (r *Report) AuthURL() string { return r.authURL }

// Token returns the token set produced by the exchange stage, if any.
func (r *Report) Token() *oidc.Token { return r.token }

// Claims returns the validated access token claims, if any.
func (r *Report) Claims() map[string]interface{} { return r.claims }

// Succeeded reports whether the run completed without a hard-gate failure.
// Per-stage failures (including expected ones like refresh-disabled) don't
// make a completed run unsuccessful.
func (r *Report) Succeeded() bool { return r.state == StateDone }

func (r *Report) record(res StageResult) {
	r.results = append(r.results, res)
}

func (r *Report) skipRemaining(detail string, stages ...string) {
	for _, s := range stages {
		r.record(StageResult{Stage: s, Status: StatusSkipped, Detail: detail})
	}
}
