// Package pipeline provides orchestration for the plexprep workflow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"plexprep/internal/encoder"
	"plexprep/internal/ffcmd"
	"plexprep/internal/logging"
	"plexprep/internal/model"
	"plexprep/internal/placement"
	"plexprep/internal/preset"
	"plexprep/internal/probe"
	"plexprep/internal/progress"
	"plexprep/internal/util"
)

var (
	// ErrTranscodeFailed wraps ffmpeg failures.
	ErrTranscodeFailed = errors.New("transcode failed")
	// ErrPostProcessFailed wraps placement and move failures.
	ErrPostProcessFailed = errors.New("post-processing failed")
)

// Service orchestrates the probe → test → build → transcode → place workflow
// for one file at a time.
type Service struct {
	ffmpegPath  string
	ffprobePath string
	opts        model.CLIOptions
	settings    encoder.Settings
	runner      util.CmdRunner
	reporter    progress.Reporter
	jobID       string
	fs          afero.Fs
	logger      *slog.Logger

	processor Processor
	initErr   error
}

// Option configures a Service.
type Option func(*Service)

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(p string) Option {
	return func(s *Service) {
		s.ffmpegPath = p
	}
}

// WithFFprobePath sets the ffprobe binary path.
func WithFFprobePath(p string) Option {
	return func(s *Service) {
		s.ffprobePath = p
	}
}

// WithCLIOptions sets the CLI options used for planning and execution.
func WithCLIOptions(o model.CLIOptions) Option {
	return func(s *Service) {
		s.opts = o
	}
}

// WithSettings sets the hevc_qsv encoder settings.
func WithSettings(es encoder.Settings) Option {
	return func(s *Service) {
		s.settings = es
	}
}

// WithRunner injects a custom command runner (useful for testing).
func WithRunner(r util.CmdRunner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithReporter attaches a progress reporter (used by TUI).
func WithReporter(rp progress.Reporter) Option {
	return func(s *Service) {
		s.reporter = rp
	}
}

// WithJobID sets the job ID associated with reporter events.
func WithJobID(id string) Option {
	return func(s *Service) {
		s.jobID = id
	}
}

// WithFs sets the filesystem used for rule checks, placement and moves.
func WithFs(fs afero.Fs) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService constructs a new Service with the provided options.
// It applies sensible defaults for missing components.
func NewService(opts ...Option) *Service {
	s := &Service{settings: encoder.DefaultSettings()}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = util.NewDefaultRunner()
	}
	if s.reporter == nil {
		s.reporter = progress.Nop{}
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.jobID == "" {
		s.jobID = NewJobID()
	}
	s.logger = logging.OrDiscard(s.logger).With("job", s.jobID)
	s.processor, s.initErr = NewProcessor(s.opts.Flavor, s.settings, s.fs, s.logger)
	return s
}

// NewJobID returns a fresh job identifier.
func NewJobID() string {
	return uuid.NewString()
}

// Result returns the outcome of RunJob.
type Result struct {
	Path      string
	Probe     *probe.Result
	Verdict   Verdict
	Skipped   bool
	Planned   bool
	Plan      *ffcmd.Plan
	Placement *placement.Placement
	// OutputPath is the final location of the processed file.
	OutputPath string
	Bytes      int64
}

// Inspect probes path and runs the flavor's test without building or running
// anything. Files excluded by path are returned with Skipped set and no probe.
func (s *Service) Inspect(ctx context.Context, path string) (Result, error) {
	res := Result{Path: path}
	if s.initErr != nil {
		return res, s.initErr
	}
	if s.ffprobePath == "" {
		return res, fmt.Errorf("ffprobe path is required")
	}

	s.emit(progress.StageTesting, -1, "Testing")
	if v, excluded := s.processor.Prefilter(path); excluded {
		res.Verdict = v
		res.Skipped = true
		return res, nil
	}

	s.emit(progress.StageProbe, -1, "Probing")
	pr, err := probe.New(s.ffprobePath, s.runner).Probe(ctx, path)
	if err != nil {
		res.Skipped = true
		return res, err
	}
	res.Probe = pr

	s.emit(progress.StageTesting, -1, "Testing")
	res.Verdict = s.processor.Test(pr, path)
	res.Skipped = !res.Verdict.NeedsProcessing
	s.logger.Info("file tested",
		"stage", "testing",
		"path", path,
		"flavor", s.processor.Flavor(),
		"rule", res.Verdict.Rule,
		"needs_processing", res.Verdict.NeedsProcessing,
		"reason", res.Verdict.Reason,
	)
	return res, nil
}

// RunJob executes the full pipeline for a single file.
// It never prints; when a Reporter is present, it emits progress and a final Result.
func (s *Service) RunJob(ctx context.Context, path string) (Result, error) {
	if s.initErr == nil && !s.opts.DryRun && s.ffmpegPath == "" {
		return Result{Path: path}, fmt.Errorf("ffmpeg path is required")
	}

	res, err := s.Inspect(ctx, path)
	if err != nil {
		s.emitFailed(res, err)
		return res, err
	}
	if res.Skipped {
		s.emitSkipped(res, res.Verdict.Reason)
		return res, nil
	}

	plan, err := s.processor.Build(res.Probe, res.Verdict, path)
	switch {
	case errors.Is(err, preset.ErrNothingToDo), errors.Is(err, encoder.ErrNoStreamsToProcess):
		res.Skipped = true
		s.emitSkipped(res, err.Error())
		return res, nil
	case err != nil:
		s.emitFailed(res, err)
		return res, fmt.Errorf("build command: %w", err)
	}
	res.Plan = plan
	s.logger.Info("command built", "stage", "processing", "path", path, "command", plan.String())

	if s.opts.DryRun {
		res.Planned = true
		s.emitPlanned(res)
		return res, nil
	}

	if err := s.transcode(ctx, plan, res.Probe.Duration); err != nil {
		s.emitFailed(res, err)
		return res, err
	}

	s.emit(progress.StagePostProcess, 100, "Moving")
	placer := placement.New(s.fs, s.processor.RedirectLossy(), s.logger)
	pl, err := placer.Place(res.Probe, path, plan.Output)
	if err == nil {
		err = placer.Move(pl, plan.Output, path)
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrPostProcessFailed, err)
		s.emitFailed(res, err)
		return res, err
	}
	res.Placement = &pl
	res.OutputPath = pl.Destination
	if fi, statErr := s.fs.Stat(pl.Destination); statErr == nil {
		res.Bytes = fi.Size()
	}

	s.emitSaved(res)
	return res, nil
}

// transcode runs plan, streaming progress. On failure the partial output is
// removed.
func (s *Service) transcode(ctx context.Context, plan *ffcmd.Plan, durationSec float64) error {
	if err := s.fs.MkdirAll(filepath.Dir(plan.Output), 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %v", ErrTranscodeFailed, err)
	}

	s.emit(progress.StageProcessing, 0, "Processing")
	ps := &ffcmd.ProgressState{}
	spec := util.CmdSpec{
		Path:    s.ffmpegPath,
		Args:    plan.Args,
		Verbose: false,
		StderrLine: func(line string) {
			if s.opts.Verbose {
				s.reporter.Log(progress.Log{JobID: s.jobID, Stream: progress.StreamStderr, Line: line})
			}
			if u, ok := ps.UpdateFromLine(line, s.jobID, durationSec); ok {
				s.reporter.Update(u)
			}
		},
	}

	if _, err := s.runner.Run(ctx, spec); err != nil {
		_ = s.fs.Remove(plan.Output)
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrTranscodeFailed, ctx.Err())
		}
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	if ok, _ := afero.Exists(s.fs, plan.Output); !ok {
		return fmt.Errorf("%w: ffmpeg produced no output at %s", ErrTranscodeFailed, plan.Output)
	}
	return nil
}

func (s *Service) emit(stage progress.Stage, percent float64, msg string) {
	s.reporter.Update(progress.Update{
		JobID:   s.jobID,
		Stage:   stage,
		Percent: percent,
		Message: msg,
	})
}

func (s *Service) emitSkipped(res Result, reason string) {
	s.logger.Info("file skipped", "path", res.Path, "reason", reason)
	s.emit(progress.StageSkipped, -1, "Skipped: "+reason)
	s.reporter.Result(progress.Result{
		JobID:   s.jobID,
		Source:  res.Path,
		Skipped: true,
	})
}

// emitPlanned sends a final "planned" update and reporter result for TUI.
func (s *Service) emitPlanned(res Result) {
	name := filepath.Base(res.Plan.Output)
	s.emit(progress.StageCompleted, 100, fmt.Sprintf("Planned: %s (dry-run)", name))
	s.reporter.Result(progress.Result{
		JobID:      s.jobID,
		Source:     res.Path,
		OutputPath: res.Plan.Output,
	})
}

// emitSaved sends a final "saved" update and reporter result for TUI.
func (s *Service) emitSaved(res Result) {
	name := filepath.Base(res.OutputPath)
	size := humanize.IBytes(uint64(res.Bytes))
	s.logger.Info("file saved", "stage", "post-processing", "path", res.Path, "destination", res.OutputPath, "size", size)
	s.emit(progress.StageCompleted, 100, fmt.Sprintf("Saved: %s (%s)", name, size))
	s.reporter.Result(progress.Result{
		JobID:      s.jobID,
		Source:     res.Path,
		OutputPath: res.OutputPath,
		Bytes:      res.Bytes,
	})
}

func (s *Service) emitFailed(res Result, err error) {
	s.logger.Error("file failed", "path", res.Path, "error", err)
	s.emit(progress.StageError, -1, err.Error())
	s.reporter.Result(progress.Result{
		JobID:   s.jobID,
		Source:  res.Path,
		Skipped: errors.Is(err, probe.ErrProbeFailed),
		Err:     err,
	})
}
