package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"plexprep/internal/model"
	"plexprep/internal/pipeline"
	"plexprep/internal/ui"
	"plexprep/internal/util/deps"
)

type runMode struct {
	ForceTUI   bool
	DryRunOnly bool
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run [files or directories...]",
		Short:         "Probe, test, transcode and place files",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, args, runMode{})
		},
	}
	bindRunFlags(cmd.Flags())
	return cmd
}

func runExecute(cmd *cobra.Command, args []string, mode runMode) error {
	env, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	if mode.DryRunOnly {
		env.opts.DryRun = true
		env.opts.NoUI = true
	}

	files, err := collectInputs(afero.NewOsFs(), args)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	if len(files) == 0 {
		return &ExitError{Code: ExitCLIError, Err: errors.New("no video files found")}
	}

	// TUI path (forced or auto if TTY and not disabled)
	useTUI := mode.ForceTUI || (!env.opts.NoUI && !env.opts.DryRun && isTerminal())
	if useTUI {
		if err := ui.Run(cmd.Context(), files, env.opts, env.settings); err != nil {
			return &ExitError{Code: exitCodeFor(err), Err: err}
		}
		return nil
	}

	// Non-UI path
	ffprobePath, err := deps.FindFFprobe(env.opts.FFprobeBinary)
	if err != nil {
		return &ExitError{Code: ExitMissingDep, Err: err}
	}
	var ffmpegPath string
	if !env.opts.DryRun {
		ffmpegPath, err = deps.FindFFmpeg(env.opts.FFmpegBinary)
		if err != nil {
			return &ExitError{Code: ExitMissingDep, Err: err}
		}
	}

	jobs := pipeline.NewFileJobs(files)
	outcomes := pipeline.RunBatch(cmd.Context(), jobs, env.opts.Jobs, func(j model.FileJob) *pipeline.Service {
		return pipeline.NewService(
			pipeline.WithFFmpegPath(ffmpegPath),
			pipeline.WithFFprobePath(ffprobePath),
			pipeline.WithCLIOptions(env.opts),
			pipeline.WithSettings(env.settings),
			pipeline.WithJobID(j.ID),
			pipeline.WithLogger(env.logger),
		)
	})

	var firstErr error
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s: %v\n", o.Job.Path, o.Err)
			if firstErr == nil {
				firstErr = o.Err
			}
			continue
		}
		printOutcome(cmd.OutOrStdout(), o, env.opts)
	}
	if firstErr != nil {
		failed := 0
		for _, o := range outcomes {
			if o.Err != nil {
				failed++
			}
		}
		return &ExitError{Code: exitCodeFor(firstErr), Err: fmt.Errorf("%d of %d file(s) failed", failed, len(outcomes))}
	}
	return nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printOutcome(w io.Writer, o pipeline.JobOutcome, opts model.CLIOptions) {
	res := o.Result
	switch {
	case res.Planned:
		printPlan(w, res, opts)
	case res.Skipped:
		fmt.Fprintf(w, "Skipped: %s (%s)\n", o.Job.Path, res.Verdict.Reason)
	default:
		fmt.Fprintf(w, "Saved: %s (%s)\n", res.OutputPath, humanize.IBytes(uint64(res.Bytes)))
	}
}

// printPlan outputs a dry-run plan of actions without executing them.
func printPlan(w io.Writer, res pipeline.Result, opts model.CLIOptions) {
	fmt.Fprintln(w, "Dry-run plan:")
	fmt.Fprintf(w, "- File:           %s\n", res.Path)
	fmt.Fprintf(w, "- Flavor:         %s\n", opts.Flavor)
	fmt.Fprintf(w, "- Rule:           %s\n", res.Verdict.Rule)
	fmt.Fprintf(w, "- Reason:         %s\n", res.Verdict.Reason)
	fmt.Fprintf(w, "- Output:         %s\n", res.Plan.Output)
	fmt.Fprintf(w, "- Output dir:     %s\n", filepath.Dir(res.Plan.Output))
	fmt.Fprintf(w, "- Command:        %s\n", res.Plan.String())
}
