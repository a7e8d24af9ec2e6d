package model

import (
	"fmt"
	"strings"
)

// Flavor selects the decision engine applied to each file.
type Flavor string

const (
	FlavorQSV    Flavor = "hevc_qsv"
	FlavorPreset Flavor = "preset"
)

// Flavors lists the accepted --flavor values.
var Flavors = []Flavor{FlavorQSV, FlavorPreset}

// ParseFlavor validates a --flavor value.
func ParseFlavor(s string) (Flavor, error) {
	f := Flavor(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Flavors {
		if f == v {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid flavor %q (valid: hevc_qsv|preset)", s)
}

// CLIOptions holds user-configurable runtime options as parsed from flags
// and config.
type CLIOptions struct {
	Flavor  Flavor
	DryRun  bool
	Verbose bool

	FFmpegBinary  string // Optional explicit path to ffmpeg
	FFprobeBinary string // Optional explicit path to ffprobe

	NoUI bool // Disable TUI when true
	Jobs int  // Max concurrent files
}

// FileJob is one input file with its runtime job ID.
type FileJob struct {
	ID   string
	Path string
}
