package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newEnvCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Validate the integration settings without touching the network",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			report := opts.checkSettings(readSettings())
			if err := renderEnvReport(out, report); err != nil {
				return err
			}
			if !report.OK() {
				fmt.Fprintln(out, "\nsome settings are missing or invalid; fix the items above and rerun")
				return errors.New("configuration check failed")
			}
			fmt.Fprintln(out, "\nall required settings are present and well-formed")
			if warns := report.Warnings(); len(warns) > 0 {
				fmt.Fprintf(out, "%d warning(s) were reported; review them before going to production\n", len(warns))
			}
			fmt.Fprintln(out, "next: run \"authprobe connect\" to verify the authorization server is reachable")
			return nil
		},
	}
}
