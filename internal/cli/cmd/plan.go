package cmd

import (
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "plan [files or directories...]",
		Short:         "Show the ffmpeg command for each file without executing",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{
				DryRunOnly: true,
			})
		},
	}
	bindRunFlags(cmd.Flags())
	return cmd
}
