package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"plexprep/internal/config"
	"plexprep/internal/encoder"
	"plexprep/internal/logging"
	"plexprep/internal/model"
	"plexprep/internal/pipeline"
	"plexprep/internal/probe"
	"plexprep/internal/util/deps"
)

// runtimeEnv is everything a command needs after flags and config merge.
type runtimeEnv struct {
	cfg      config.Config
	opts     model.CLIOptions
	settings encoder.Settings
	logger   *slog.Logger
}

func loadRuntime(cmd *cobra.Command) (runtimeEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return runtimeEnv{}, &ExitError{Code: ExitConfigError, Err: err}
	}
	flavor, err := model.ParseFlavor(cfg.Flavor)
	if err != nil {
		return runtimeEnv{}, &ExitError{Code: ExitCLIError, Err: err}
	}
	settings, err := cfg.Encoder.Settings()
	if err != nil {
		return runtimeEnv{}, &ExitError{Code: ExitConfigError, Err: err}
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return runtimeEnv{}, &ExitError{Code: ExitConfigError, Err: err}
	}

	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = 2
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noUI, _ := cmd.Flags().GetBool("no-ui")

	return runtimeEnv{
		cfg: cfg,
		opts: model.CLIOptions{
			Flavor:        flavor,
			DryRun:        dryRun,
			Verbose:       cfg.Verbose,
			FFmpegBinary:  cfg.FFmpeg,
			FFprobeBinary: cfg.FFprobe,
			NoUI:          noUI,
			Jobs:          jobs,
		},
		settings: settings,
		logger:   logger,
	}, nil
}

// exitCodeFor maps a per-file failure to the process exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, deps.ErrNotFound):
		return ExitMissingDep
	case errors.Is(err, encoder.ErrInvalidConfiguration):
		return ExitConfigError
	case errors.Is(err, probe.ErrProbeFailed):
		return ExitProbeError
	case errors.Is(err, pipeline.ErrTranscodeFailed), errors.Is(err, pipeline.ErrPostProcessFailed):
		return ExitTranscodeError
	default:
		return ExitCLIError
	}
}
