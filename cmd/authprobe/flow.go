package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/authprobe/authprobe/flow"
)

func newFlowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flow",
		Short: "Walk the full interactive authorization-code flow",
		Long: "Runs the complete verification: configuration gate, authorization URL,\n" +
			"an out-of-band browser sign-in (you paste the redirect URL back), code\n" +
			"exchange, access token validation and token refresh. Every stage after\n" +
			"the configuration gate is reported individually; a single failing stage\n" +
			"doesn't abort the rest.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			env := readSettings()

			connect := func(ctx context.Context) (flow.Client, error) {
				return opts.newProvider(ctx, env)
			}
			runner, err := flow.NewRunner(connect, stdinPrompt(cmd.InOrStdin(), out),
				flow.WithLogger(opts.logger.Named("flow")))
			if err != nil {
				return err
			}

			report, err := runner.Run(cmd.Context(), opts.checkSettings(env))
			if err != nil {
				// unexpected fault, never swallowed
				opts.logger.Error("verification run failed", "error", err)
				return err
			}

			fmt.Fprintln(out)
			if err := renderFlowReport(out, report); err != nil {
				return err
			}
			renderTokenDetails(out, report.Token())
			renderClaims(out, report.Claims())

			if !report.Succeeded() {
				return errors.New("verification aborted before completing; fix the hard failures above and rerun")
			}
			fmt.Fprintln(out, "\nverification flow completed")
			return nil
		},
	}
}

// stdinPrompt is the out-of-band human input boundary: it prints the
// sign-in instructions and blocks until the operator pastes the redirect
// URL (or presses Enter to skip the remaining stages).
func stdinPrompt(in io.Reader, out io.Writer) flow.PromptFunc {
	reader := bufio.NewReader(in)
	return func(authURL string) (string, error) {
		fmt.Fprintln(out, "Complete the sign-in via your provider:")
		fmt.Fprintln(out, "  1. open the URL below in a browser")
		fmt.Fprintln(out, "  2. sign in (or create an account)")
		fmt.Fprintln(out, "  3. copy the full redirect URL from the address bar")
		fmt.Fprintf(out, "\n    %s\n\n", authURL)
		fmt.Fprint(out, "Paste the redirect URL here (or press Enter to skip): ")

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}
