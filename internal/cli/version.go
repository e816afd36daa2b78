package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecstasoy/addrecho/internal/build"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", build.BuildVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "Built at: %s\n", build.BuildTime)
		},
	}
}
