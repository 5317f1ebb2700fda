package cli

import (
	"github.com/spf13/cobra"
)

func newServeCmd(e *env) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve the management API over HTTP until interrupted. The server
exposes the same operations as the CLI: sessions, clients, groups,
devices, and controller health.

Protect the API by setting server.auth_token_hash in the config file
to the output of 'warden hash-token'; with no hash set the server
accepts unauthenticated requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			if listen != "" {
				a.Config.Server.Listen = listen
			}
			return a.RunServer(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides config, e.g. 0.0.0.0:8787)")
	return cmd
}
