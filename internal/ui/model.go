package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"plexprep/internal/encoder"
	"plexprep/internal/model"
	"plexprep/internal/pipeline"
	"plexprep/internal/progress"
	"plexprep/internal/util/deps"
)

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	// App state (deps)
	depsChecked bool
	depsErr     error
	ffmpegPath  string
	ffprobePath string

	// Jobs
	files    []model.FileJob
	opts     model.CLIOptions
	settings encoder.Settings
	jobOrder []string
	jobs     map[string]*jobState
	workers  int
	running  int
	next     int // next index in files to start

	// UI
	width, height int
	styles        Styles

	// Internal event channel used by reporter to feed tea messages
	eventCh chan tea.Msg
}

func NewModel(ctx context.Context, files []string, opts model.CLIOptions, settings encoder.Settings) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()

	fileJobs := pipeline.NewFileJobs(files)
	jobs := make(map[string]*jobState, len(fileJobs))
	order := make([]string, 0, len(fileJobs))
	for _, fj := range fileJobs {
		js := newJobState(fj.ID, fj.Path, sty)
		jobs[fj.ID] = &js
		order = append(order, fj.ID)
	}

	workers := opts.Jobs
	if workers <= 0 {
		workers = 2
	}

	return Model{
		ctx:      c,
		cancel:   cancel,
		files:    fileJobs,
		opts:     opts,
		settings: settings,
		jobs:     jobs,
		jobOrder: order,
		workers:  workers,
		styles:   sty,
		eventCh:  make(chan tea.Msg, 256),
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		sp := m.jobs[id].spinner
		cmds = append(cmds, sp.Tick)
	}
	// Listen for reporter events
	cmds = append(cmds, m.listenEventsCmd())
	// Kick off dependency check
	cmds = append(cmds, m.checkDepsCmd())
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case depsCheckedMsg:
		m.depsChecked = true
		m.depsErr = msg.Err
		m.ffmpegPath = msg.FFmpegPath
		m.ffprobePath = msg.FFprobePath
		if m.depsErr != nil {
			for _, id := range m.jobOrder {
				js := m.jobs[id]
				js.stage = progress.StageError
				js.status = fmt.Sprintf("Dependency error: %v", m.depsErr)
				js.err = m.depsErr
				js.done = true
			}
			return m, tea.Quit
		}
		cmd := m.startNextWorkers()
		return m, cmd

	case jobUpdateMsg:
		u := msg.U
		if js, ok := m.jobs[u.JobID]; ok {
			js.stage = u.Stage
			js.percent = u.Percent
			js.status = u.Message
			if u.Bytes != nil {
				js.bytes = *u.Bytes
			}
			if u.Speed != nil {
				js.speed = *u.Speed
			}
			if u.Stage == progress.StageProcessing && u.Message == "Processing" && u.Percent >= 0 {
				js.status = processingStatus(u)
			}
		}
	case jobLogMsg:
		l := msg.L
		if js, ok := m.jobs[l.JobID]; ok {
			line := strings.TrimRight(l.Line, "\r\n")
			if len(js.logsRing) > 1000 {
				js.logsRing = js.logsRing[1:]
			}
			js.logsRing = append(js.logsRing, line)
		}
	case jobResultMsg:
		r := msg.R
		if js, ok := m.jobs[r.JobID]; ok {
			js.done = true
			js.err = r.Err
			switch {
			case r.Err != nil:
				js.stage = progress.StageError
				js.status = r.Err.Error()
				js.percent = -1
			case r.Skipped:
				js.stage = progress.StageSkipped
				js.percent = -1
			default:
				js.stage = progress.StageCompleted
				js.percent = 100
				js.outputPath = r.OutputPath
				js.bytes = r.Bytes
				if r.OutputPath != "" {
					name := filepath.Base(r.OutputPath)
					if m.opts.DryRun {
						js.status = fmt.Sprintf("Planned: %s (dry-run)", name)
					} else {
						js.status = fmt.Sprintf("Saved: %s (%s)", name, humanize.IBytes(uint64(r.Bytes)))
					}
				} else {
					js.status = "Completed"
				}
			}
			m.running--
			// Start next job if any remain
			next := m.startNextWorkers()
			return m, tea.Batch(next, m.listenEventsCmd())
		}
	case allDoneMsg:
		return m, tea.Quit
	}

	// Update per-job components (spinner)
	var cmds []tea.Cmd
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		var c tea.Cmd
		js.spinner, c = js.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	// Keep listening for events
	switch msg.(type) {
	case jobUpdateMsg, jobLogMsg:
		cmds = append(cmds, m.listenEventsCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	summary := m.viewSummary()
	if summary != "" {
		return m.viewHeader() + "\n\n" + m.viewJobs() + "\n" + summary
	}
	return m.viewHeader() + "\n\n" + m.viewJobs()
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return allDoneMsg{}
		case msg := <-m.eventCh:
			return msg
		}
	}
}

func (m Model) checkDepsCmd() tea.Cmd {
	return func() tea.Msg {
		probePath, perr := deps.FindFFprobe(m.opts.FFprobeBinary)
		if perr != nil {
			return depsCheckedMsg{Err: perr}
		}
		var ff string
		if !m.opts.DryRun {
			p, ferr := deps.FindFFmpeg(m.opts.FFmpegBinary)
			if ferr != nil {
				return depsCheckedMsg{Err: ferr}
			}
			ff = p
		}
		return depsCheckedMsg{FFmpegPath: ff, FFprobePath: probePath}
	}
}

// startNextWorkers launches jobs up to the worker limit. It runs inside
// Update so the counters live on the model that Update returns.
func (m *Model) startNextWorkers() tea.Cmd {
	if m.ctx.Err() != nil {
		return func() tea.Msg { return allDoneMsg{} }
	}
	for m.running < m.workers && m.next < len(m.files) {
		fj := m.files[m.next]
		m.next++
		m.running++
		if js := m.jobs[fj.ID]; js != nil {
			js.started = true
			js.status = "Starting"
			js.stage = progress.StageTesting
		}
		go m.runJob(fj)
	}
	if m.next >= len(m.files) && m.running == 0 {
		return func() tea.Msg { return allDoneMsg{} }
	}
	return nil
}

func (m Model) runJob(fj model.FileJob) {
	svc := pipeline.NewService(
		pipeline.WithFFmpegPath(m.ffmpegPath),
		pipeline.WithFFprobePath(m.ffprobePath),
		pipeline.WithCLIOptions(m.opts),
		pipeline.WithSettings(m.settings),
		pipeline.WithReporter(teaReporter{ch: m.eventCh}),
		pipeline.WithJobID(fj.ID),
	)
	// Errors reach the model through the reporter's Result event.
	_, _ = svc.RunJob(m.ctx, fj.Path)
}

func processingStatus(u progress.Update) string {
	parts := []string{"Processing"}
	if u.Speed != nil {
		parts = append(parts, *u.Speed)
	}
	if u.Bytes != nil {
		parts = append(parts, humanize.IBytes(uint64(*u.Bytes)))
	}
	if u.ETA != nil {
		parts = append(parts, "ETA "+u.ETA.Round(1e9).String())
	}
	return strings.Join(parts, " · ")
}

type teaReporter struct {
	ch chan tea.Msg
}

func (r teaReporter) Update(u progress.Update) {
	// Block on terminal updates to ensure they're delivered
	if u.Stage.Terminal() {
		r.ch <- jobUpdateMsg{U: u}
		return
	}
	select {
	case r.ch <- jobUpdateMsg{U: u}:
	default:
	}
}
func (r teaReporter) Log(l progress.Log) {
	select {
	case r.ch <- jobLogMsg{L: l}:
	default:
	}
}
func (r teaReporter) Result(res progress.Result) {
	// Always block on Result messages - they're critical
	r.ch <- jobResultMsg{R: res}
}
