// Package ffcmd holds the pieces shared by both decision engines: the
// finished ffmpeg invocation, option groups and stderr progress parsing.
package ffcmd

import (
	"strings"

	"plexprep/internal/util"
)

// Plan is a complete ffmpeg invocation for one file. Args excludes the
// binary. A Plan is built once and not modified afterwards.
type Plan struct {
	Args      []string
	Input     string
	Output    string
	Container string // extension of Output with leading dot
}

// NewPlan returns a Plan for args writing to output.
func NewPlan(input, output string, args []string) *Plan {
	cp := make([]string, len(args))
	copy(cp, args)
	return &Plan{
		Args:      cp,
		Input:     input,
		Output:    output,
		Container: util.Ext(output),
	}
}

// String renders the invocation for logs and dry-run output.
func (p *Plan) String() string {
	return util.ShellQuote("ffmpeg", p.Args)
}

// Tokenize splits free-form option text on any whitespace, newlines
// included, and drops empty tokens.
func Tokenize(s string) []string {
	return strings.Fields(s)
}
