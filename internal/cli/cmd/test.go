package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"plexprep/internal/pipeline"
	"plexprep/internal/util/deps"
)

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "test [files or directories...]",
		Short:         "Show whether each file needs processing and why",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			files, err := collectInputs(afero.NewOsFs(), args)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			ffprobePath, err := deps.FindFFprobe(env.opts.FFprobeBinary)
			if err != nil {
				return &ExitError{Code: ExitMissingDep, Err: err}
			}

			var rows [][]string
			var firstErr error
			for _, f := range files {
				svc := pipeline.NewService(
					pipeline.WithFFprobePath(ffprobePath),
					pipeline.WithCLIOptions(env.opts),
					pipeline.WithSettings(env.settings),
					pipeline.WithLogger(env.logger),
				)
				res, err := svc.Inspect(cmd.Context(), f)
				if err != nil {
					rows = append(rows, []string{f, "error", "no", err.Error(), ""})
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				rows = append(rows, verdictRow(res))
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"File", "Rule", "Process", "Reason", "Flags"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			if firstErr != nil {
				return &ExitError{Code: exitCodeFor(firstErr), Err: firstErr}
			}
			return nil
		},
	}
}

func verdictRow(res pipeline.Result) []string {
	process := "no"
	if res.Verdict.NeedsProcessing {
		process = "yes"
	}
	var flags []string
	if d := res.Verdict.Decision; d != nil {
		for k, v := range d.Info.Map() {
			if k == "video_stream_index" {
				flags = append(flags, fmt.Sprintf("%s=%v", k, v))
				continue
			}
			flags = append(flags, k)
		}
		sort.Strings(flags)
	}
	return []string{res.Path, res.Verdict.Rule, process, res.Verdict.Reason, strings.Join(flags, ", ")}
}
