package probe

import (
	"github.com/spf13/cobra"
)

func newReadiness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Checks whether the local service is ready to take wallet traffic",
		Run: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool(verboseFlag)
			runProbe("/readyz", verbose)
		},
	}
	cmd.Flags().BoolP(verboseFlag, "v", false, "Print the probe response body")
	return cmd
}
