package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/authprobe/authprobe/envcheck"
	"github.com/authprobe/authprobe/oidc"
)

// defaultScopes matches what a typical full-stack integration requests;
// offline_access is included so the refresh stage has something to work
// with when the provider supports it.
var defaultScopes = []string{"profile", "email", "offline_access"}

type rootOptions struct {
	envFile        string
	providerDomain string
	debug          bool

	logger hclog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "authprobe",
		Short: "Verify an OIDC authorization-code integration end to end",
		Long: "authprobe verifies an OAuth2/OIDC authorization-code integration before\n" +
			"it's wired into an application: it validates configuration, confirms the\n" +
			"authorization server issues authorization and logout URLs, and can walk a\n" +
			"full interactive code exchange, token validation and refresh.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := hclog.Info
			if opts.debug {
				level = hclog.Debug
			}
			opts.logger = hclog.New(&hclog.LoggerOptions{
				Name:   "authprobe",
				Level:  level,
				Output: cmd.ErrOrStderr(),
			})
			if err := godotenv.Load(opts.envFile); err != nil {
				// a missing .env file is fine; settings may come from the
				// process environment
				if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("unable to load %s: %w", opts.envFile, err)
				}
				opts.logger.Debug("no env file found, using process environment", "path", opts.envFile)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to a dotenv file with the integration settings")
	cmd.PersistentFlags().StringVar(&opts.providerDomain, "provider-domain", "", "expected domain suffix of the authorization server URL (warning-only check)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newEnvCmd(opts))
	cmd.AddCommand(newConnectCmd(opts))
	cmd.AddCommand(newFlowCmd(opts))
	return cmd
}

// readSettings snapshots the conventional configuration keys from the
// process environment (godotenv has already folded the .env file in).
func readSettings() map[string]string {
	keys := []string{
		envcheck.KeyEnvironmentURL,
		envcheck.KeyClientID,
		envcheck.KeyClientSecret,
		envcheck.KeyCallbackURL,
		envcheck.KeyAppURL,
		envcheck.KeyPostLogoutURL,
		envcheck.KeyCookieSecure,
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = os.Getenv(k)
	}
	return out
}

// checkSettings runs the configuration validator with the root options
// applied. The --provider-domain flag wins over the PROVIDER_DOMAIN key.
func (o *rootOptions) checkSettings(env map[string]string) *envcheck.Report {
	domain := o.providerDomain
	if domain == "" {
		domain = os.Getenv("PROVIDER_DOMAIN")
	}
	return envcheck.Check(env, envcheck.WithProviderDomain(domain))
}

// newProvider builds the provider config from the validated settings and
// performs discovery. Callers must only invoke it after the configuration
// gate passed.
func (o *rootOptions) newProvider(ctx context.Context, env map[string]string) (*oidc.Provider, error) {
	cfg, err := oidc.NewConfig(
		env[envcheck.KeyEnvironmentURL],
		env[envcheck.KeyClientID],
		oidc.ClientSecret(env[envcheck.KeyClientSecret]),
		env[envcheck.KeyCallbackURL],
		oidc.WithScopes(defaultScopes...),
		oidc.WithLogger(o.logger.Named("oidc")),
	)
	if err != nil {
		return nil, err
	}
	return oidc.NewProvider(ctx, cfg)
}
