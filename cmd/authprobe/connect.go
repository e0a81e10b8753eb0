package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/authprobe/authprobe/envcheck"
)

func newConnectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Verify the authorization server is reachable and issues URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			env := readSettings()

			report := opts.checkSettings(env)
			if !report.OK() {
				if err := renderEnvReport(out, report); err != nil {
					return err
				}
				return errors.New("configuration check failed; run \"authprobe env\" for details")
			}

			provider, err := opts.newProvider(cmd.Context(), env)
			if err != nil {
				opts.logger.Error("provider discovery failed", "error", err)
				return fmt.Errorf("unable to reach the authorization server: %w", err)
			}
			fmt.Fprintln(out, "authorization server discovered")

			authURL, err := provider.AuthURL(cmd.Context())
			if err != nil {
				return fmt.Errorf("unable to generate an authorization URL: %w", err)
			}
			fmt.Fprintf(out, "authorization URL: %s\n", authURL)

			// no id_token_hint: probing logout without a live session is the
			// typical case here
			logoutURL, err := provider.LogoutURL(cmd.Context(), env[envcheck.KeyPostLogoutURL], "")
			switch {
			case err != nil:
				fmt.Fprintf(out, "logout URL: unavailable (%s)\n", err)
			default:
				fmt.Fprintf(out, "logout URL: %s\n", logoutURL)
			}

			fmt.Fprintln(out, "\nconnection test completed")
			fmt.Fprintf(out, "make sure %q is registered as a redirect URI with the provider,\n", env[envcheck.KeyCallbackURL])
			fmt.Fprintln(out, "then run \"authprobe flow\" to verify the full authorization-code flow")
			return nil
		},
	}
}
