package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"plexprep/internal/config"
	"plexprep/internal/util/deps"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose external dependencies (ffmpeg, ffprobe) and configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			probePath, perr := deps.FindFFprobe(env.opts.FFprobeBinary)
			if perr != nil {
				return &ExitError{Code: ExitMissingDep, Err: perr}
			}
			ff, ferr := deps.FindFFmpeg(env.opts.FFmpegBinary)
			if ferr != nil {
				return &ExitError{Code: ExitMissingDep, Err: ferr}
			}
			cfgFile := config.UsedFile()
			if cfgFile == "" {
				cfgFile = "(none, using defaults)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "FFmpeg:    %s\n", ff)
			fmt.Fprintf(cmd.OutOrStdout(), "FFprobe:   %s\n", probePath)
			fmt.Fprintf(cmd.OutOrStdout(), "Config:    %s\n", cfgFile)
			fmt.Fprintf(cmd.OutOrStdout(), "Flavor:    %s\n", env.opts.Flavor)
			return nil
		},
	}
}
