package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"plexprep/internal/progress"
)

type jobState struct {
	id     string
	path   string
	stage  progress.Stage
	status string
	err    error
	done   bool

	outputPath string
	bytes      int64
	percent    float64 // -1 means unknown
	speed      string

	spinner spinner.Model
	bar     bubblesprogress.Model

	started bool

	// recent ffmpeg lines, kept small
	logsRing []string
}

func newJobState(id, path string, styles Styles) jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	return jobState{
		id:      id,
		path:    path,
		stage:   progress.StageQueued,
		status:  "Queued",
		percent: -1,
		spinner: sp,
		bar:     bar,
	}
}
