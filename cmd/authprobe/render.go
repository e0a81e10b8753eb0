package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/authprobe/authprobe/envcheck"
	"github.com/authprobe/authprobe/flow"
	"github.com/authprobe/authprobe/oidc"
)

// renderEnvReport prints the itemized configuration report as a table.
func renderEnvReport(w io.Writer, report *envcheck.Report) error {
	table := tablewriter.NewWriter(w)
	table.Options(
		tablewriter.WithHeader([]string{"Setting", "Status", "Value", "Detail"}),
	)
	for _, it := range report.Items() {
		if err := table.Append([]string{it.Key, it.Status.String(), it.Display, it.Detail}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// renderFlowReport prints the per-stage outcomes, with hints below the
// table so they stay readable.
func renderFlowReport(w io.Writer, report *flow.Report) error {
	table := tablewriter.NewWriter(w)
	table.Options(
		tablewriter.WithHeader([]string{"Stage", "Outcome", "Detail"}),
	)
	for _, res := range report.Results() {
		outcome := res.Status.String()
		if res.Status == flow.StatusFailed && res.Expected {
			outcome = "failed (expected)"
		}
		if err := table.Append([]string{res.Stage, outcome, res.Detail}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	for _, res := range report.Results() {
		if res.Status == flow.StatusFailed && res.Hint != "" {
			fmt.Fprintf(w, "hint (%s): %s\n", res.Stage, res.Hint)
		}
	}
	fmt.Fprintf(w, "\nfinal state: %s\n", report.State())
	return nil
}

// renderTokenDetails prints the token set and user projection with token
// material truncated, matching what an operator needs to eyeball without
// leaking whole credentials into a terminal scrollback.
func renderTokenDetails(w io.Writer, t *oidc.Token) {
	if t == nil {
		return
	}
	fmt.Fprintln(w, "Token details:")
	fmt.Fprintf(w, "  access token:  %s\n", truncate(string(t.AccessToken)))
	if t.RefreshToken != "" {
		fmt.Fprintf(w, "  refresh token: %s\n", truncate(string(t.RefreshToken)))
	}
	if t.IDToken != "" {
		fmt.Fprintf(w, "  id token:      %s\n", truncate(string(t.IDToken)))
	}
	fmt.Fprintf(w, "  expires in:    %ds\n", t.ExpiresIn)

	if t.User.Sub != "" {
		fmt.Fprintln(w, "User:")
		fmt.Fprintf(w, "  sub:            %s\n", t.User.Sub)
		fmt.Fprintf(w, "  email:          %s\n", t.User.Email)
		fmt.Fprintf(w, "  email verified: %t\n", t.User.EmailVerified)
		if t.User.Name != "" {
			fmt.Fprintf(w, "  name:           %s\n", t.User.Name)
		}
		if t.User.GivenName != "" {
			fmt.Fprintf(w, "  given name:     %s\n", t.User.GivenName)
		}
		if t.User.FamilyName != "" {
			fmt.Fprintf(w, "  family name:    %s\n", t.User.FamilyName)
		}
	}
}

// renderClaims prints the validated access token claims, sorted for stable
// output.
func renderClaims(w io.Writer, claims map[string]interface{}) {
	if len(claims) == 0 {
		return
	}
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "Access token claims:")
	for _, k := range keys {
		v, err := json.Marshal(claims[k])
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", k, v)
	}
}

// truncate shortens token material to its first 20 characters, the same
// courtesy masking the report applies to secrets.
func truncate(s string) string {
	if len(s) > 20 {
		return s[:20] + "..."
	}
	return s
}
