// authprobe is a one-shot verification harness for OAuth2/OIDC
// authorization-code integrations. It checks configuration, confirms the
// authorization server is reachable and issues URLs, and walks an operator
// through a full code exchange, token validation and refresh, all before
// any of it is wired into a real application.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
