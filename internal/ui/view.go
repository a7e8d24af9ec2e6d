package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"plexprep/internal/progress"
)

func (m Model) viewHeader() string {
	done, total := 0, len(m.jobOrder)
	for _, id := range m.jobOrder {
		if m.jobs[id].done {
			done++
		}
	}
	name := "plexprep"
	if m.opts.Flavor != "" {
		name += " · " + string(m.opts.Flavor)
	}
	if m.opts.DryRun {
		name += " (dry-run)"
	}
	title := m.styles.Title.Render(name)
	sub := m.styles.Subtitle.Render(fmt.Sprintf("Files: %d/%d done • q: quit", done, total))
	return title + "\n" + sub
}

func (m Model) viewJobs() string {
	var b strings.Builder
	for _, id := range m.jobOrder {
		b.WriteString(m.viewJob(m.jobs[id]))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewJob(js *jobState) string {
	stageStyle := m.styles.JobInfo
	switch js.stage {
	case progress.StageProbe:
		stageStyle = m.styles.StageProbe
	case progress.StageTesting:
		stageStyle = m.styles.StageTest
	case progress.StageProcessing:
		stageStyle = m.styles.StageProc
	case progress.StagePostProcess:
		stageStyle = m.styles.StagePost
	case progress.StageCompleted:
		stageStyle = m.styles.Success
	case progress.StageSkipped:
		stageStyle = m.styles.Warning
	case progress.StageError:
		stageStyle = m.styles.Error
	}

	left := m.styles.JobTitle.Render(truncate(filepath.Base(js.path), 48))
	stage := stageStyle.Render(string(js.stage))

	var right string
	switch {
	case js.percent >= 0 && js.percent <= 100:
		right = fmt.Sprintf("%s %5.1f%%", js.bar.ViewAs(js.percent/100.0), js.percent)
	case js.err != nil:
		right = m.styles.Error.Render("✗ error")
	case js.done && js.stage == progress.StageSkipped:
		right = m.styles.Warning.Render("– skipped")
	case js.done:
		right = m.styles.Success.Render("✓ done")
	case !js.started:
		right = m.styles.Faint.Render("waiting")
	default:
		right = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("working")
	}

	line1 := fmt.Sprintf("%s  %s", left, stage)
	line2 := m.styles.JobInfo.Render(js.status)
	out := line1 + "\n" + right + "\n" + line2
	if m.opts.Verbose && len(js.logsRing) > 0 && !js.done {
		out += "\n" + m.styles.Faint.Render(truncate(js.logsRing[len(js.logsRing)-1], 96))
	}
	return m.styles.Box.Render(out)
}

func (m Model) viewSummary() string {
	var completed []string
	for _, id := range m.jobOrder {
		js := m.jobs[id]
		if js.done && js.err == nil && js.outputPath != "" {
			completed = append(completed, js.outputPath)
		}
	}
	if len(completed) == 0 {
		return ""
	}

	var b strings.Builder
	if m.opts.DryRun {
		b.WriteString(m.styles.Subtitle.Render("Planned outputs:"))
	} else {
		b.WriteString(m.styles.Subtitle.Render("✓ Optimized files:"))
	}
	b.WriteString("\n")
	for _, path := range completed {
		b.WriteString(m.styles.Success.Render("  • " + path))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
