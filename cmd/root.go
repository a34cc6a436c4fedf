package cmd

import (
	"npmerge/pkg/logging"
	"npmerge/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger  *zap.Logger
	verbose bool
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "npmerge",
	Short: "npmerge concatenates paired Neuropixels recordings",
	Long: `npmerge matches binary recording files across two acquisition session
directories by the probe number in their imec<N> folder names, concatenates
each matched pair into a new recording, and merges the sidecar metadata to
describe the combined file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			if debugLogger, err := logging.Setup(true, "npmerge", version.Get().Version); err == nil {
				logger = debugLogger
			}
		}
	},
}

// Execute runs the root command with the given logger.
func Execute(l *zap.Logger) error {
	logger = l
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
