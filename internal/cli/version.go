package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"nc-warden.io/warden/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the warden version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "warden %s %s/%s\n",
				version.Summary(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
