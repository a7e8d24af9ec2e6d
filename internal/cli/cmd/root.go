package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"plexprep/internal/config"
)

const (
	ExitOK             = 0
	ExitCLIError       = 1
	ExitMissingDep     = 2
	ExitProbeError     = 3
	ExitTranscodeError = 4
	ExitConfigError    = 5
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "plexprep [files or directories...]",
		Short: "Normalize a video library for Plex playback",
		Long: "plexprep probes video files, decides whether they need work and builds the ffmpeg command that fixes them. " +
			"The hevc_qsv flavor re-encodes video to HEVC with Intel Quick Sync; the preset flavor remuxes to mkv with " +
			"h264 video first, an ac3 first audio track and no chapters, subtitles or stray metadata.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Init(cmd.Root()); err != nil {
				return &ExitError{Code: ExitConfigError, Err: err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{})
		},
	}

	// Persistent flags available to all subcommands
	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default: <user config dir>/plexprep/config.toml)")
	pf.StringP("flavor", "f", "hevc_qsv", "Decision engine: hevc_qsv, preset")
	pf.BoolP("verbose", "v", false, "Show full ffmpeg output")
	pf.Int("jobs", 2, "Max concurrent files")
	pf.String("ffmpeg", "", "Path to ffmpeg")
	pf.String("ffprobe", "", "Path to ffprobe")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text, json")

	// Also bind run-specific flags on root, so `plexprep <file>` works.
	bindRunFlags(root.Flags())

	// Subcommands
	root.AddCommand(newRunCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newTestCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

func bindRunFlags(fs *pflag.FlagSet) {
	fs.Bool("dry-run", false, "Show commands without executing")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}
