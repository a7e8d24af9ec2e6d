package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"plexprep/internal/encoder"
	"plexprep/internal/model"
)

// Run launches the TUI over files and blocks until every job finishes or
// the user quits. Failed files are summarized in the returned error.
func Run(ctx context.Context, files []string, opts model.CLIOptions, settings encoder.Settings) error {
	m := NewModel(ctx, files, opts, settings)
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return err
	}
	fm, ok := final.(Model)
	if !ok {
		return nil
	}
	if fm.depsErr != nil {
		return fm.depsErr
	}
	var failed []string
	var first error
	for _, id := range fm.jobOrder {
		js := fm.jobs[id]
		if js == nil || js.err == nil {
			continue
		}
		if first == nil {
			first = js.err
		}
		failed = append(failed, fmt.Sprintf("- %s: %s", js.path, js.err.Error()))
	}
	if len(failed) > 0 {
		return &JobsError{First: first, Summary: fmt.Sprintf("%d file(s) failed:\n%s", len(failed), strings.Join(failed, "\n"))}
	}
	return nil
}

// JobsError reports failed files. It unwraps to the first failure so callers
// can map it to an exit code.
type JobsError struct {
	First   error
	Summary string
}

func (e *JobsError) Error() string { return e.Summary }

func (e *JobsError) Unwrap() error { return e.First }
