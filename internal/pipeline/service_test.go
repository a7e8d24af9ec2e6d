package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"plexprep/internal/model"
	"plexprep/internal/probe"
	"plexprep/internal/progress"
	"plexprep/internal/util"
)

const (
	ffprobeBin = "/bin/ffprobe"
	ffmpegBin  = "/bin/ffmpeg"
)

type recordingReporter struct {
	mu      sync.Mutex
	updates []progress.Update
	results []progress.Result
	logs    []progress.Log
}

func (r *recordingReporter) Update(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}
func (r *recordingReporter) Log(l progress.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
}
func (r *recordingReporter) Result(res progress.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recordingReporter) lastUpdate() progress.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return progress.Update{}
	}
	return r.updates[len(r.updates)-1]
}

// fakeRunner answers ffprobe from canned JSON and simulates ffmpeg by
// writing its output file into fs.
type fakeRunner struct {
	mu         sync.Mutex
	fs         afero.Fs
	probes     map[string]string
	ffmpegFail bool
	calls      []util.CmdSpec
}

// Run implements util.CmdRunner.Run.
func (f *fakeRunner) Run(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	f.mu.Unlock()

	switch spec.Path {
	case ffprobeBin:
		path := spec.Args[len(spec.Args)-1]
		js, ok := f.probes[path]
		if !ok {
			return util.CmdResult{Code: 1}, errors.New("command failed (exit 1)")
		}
		return util.CmdResult{Stdout: []byte(js)}, nil
	case ffmpegBin:
		out := spec.Args[len(spec.Args)-1]
		if err := afero.WriteFile(f.fs, out, []byte("transcoded"), 0o644); err != nil {
			return util.CmdResult{Code: -1}, err
		}
		if spec.StderrLine != nil {
			spec.StderrLine("frame=  750 fps=120 q=-1.0 size=    2048kB time=00:00:30.00 bitrate= 559.2kbits/s speed=2.00x")
		}
		if f.ffmpegFail {
			return util.CmdResult{Code: 1}, errors.New("command failed (exit 1)")
		}
		return util.CmdResult{}, nil
	}
	return util.CmdResult{}, errors.New("unexpected tool path: " + spec.Path)
}

func (f *fakeRunner) count(bin string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Path == bin {
			n++
		}
	}
	return n
}

func (f *fakeRunner) lastArgs(bin string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Path == bin {
			return f.calls[i].Args
		}
	}
	return nil
}

const (
	probeHEVCAAC = `{"streams":[{"index":0,"codec_name":"hevc","codec_type":"video"},{"index":1,"codec_name":"aac","codec_type":"audio"}],"format":{"format_name":"mov,mp4","duration":"60.0"}}`
	probeH264AC3 = `{"streams":[{"index":0,"codec_name":"h264","codec_type":"video"},{"index":1,"codec_name":"ac3","codec_type":"audio","tags":{"language":"eng"}}],"format":{"format_name":"matroska,webm","duration":"60.0"}}`
)

func newTestService(fs afero.Fs, r *fakeRunner, rep progress.Reporter, opts model.CLIOptions) *Service {
	return NewService(
		WithFFprobePath(ffprobeBin),
		WithFFmpegPath(ffmpegBin),
		WithCLIOptions(opts),
		WithRunner(r),
		WithReporter(rep),
		WithJobID("job-1"),
		WithFs(fs),
	)
}

// ---------- Tests ----------

func TestNewService_WithOptions(t *testing.T) {
	r := &fakeRunner{}
	rep := &recordingReporter{}
	fs := afero.NewMemMapFs()

	s := newTestService(fs, r, rep, model.CLIOptions{Flavor: model.FlavorPreset, Verbose: true})
	if s.ffprobePath != ffprobeBin || s.ffmpegPath != ffmpegBin {
		t.Errorf("paths = %q, %q", s.ffprobePath, s.ffmpegPath)
	}
	if s.jobID != "job-1" {
		t.Errorf("jobID = %q", s.jobID)
	}
	if s.processor.Flavor() != model.FlavorPreset {
		t.Errorf("flavor = %q", s.processor.Flavor())
	}
	if !s.processor.RedirectLossy() {
		t.Errorf("preset flavor should redirect lossy sources")
	}

	// Defaults
	s2 := NewService()
	if s2.runner == nil || s2.reporter == nil || s2.fs == nil {
		t.Errorf("defaults not applied: %+v", s2)
	}
	if s2.jobID == "" {
		t.Errorf("jobID should be generated")
	}
	if s2.processor.Flavor() != model.FlavorQSV {
		t.Errorf("default flavor = %q, want hevc_qsv", s2.processor.Flavor())
	}
}

func TestRunJob_UnknownFlavor(t *testing.T) {
	s := NewService(WithCLIOptions(model.CLIOptions{Flavor: "vp9"}), WithFFprobePath(ffprobeBin), WithFFmpegPath(ffmpegBin))
	if _, err := s.RunJob(context.Background(), "/tv/a.mkv"); err == nil || !strings.Contains(err.Error(), "unknown flavor") {
		t.Errorf("expected unknown flavor error, got %v", err)
	}
}

func TestRunJob_MissingPaths(t *testing.T) {
	s1 := NewService(WithCLIOptions(model.CLIOptions{DryRun: true}))
	_, err := s1.RunJob(context.Background(), "/tv/a.mkv")
	if err == nil || !strings.Contains(err.Error(), "ffprobe path is required") {
		t.Errorf("expected ffprobe path error, got %v", err)
	}

	s2 := NewService(WithFFprobePath(ffprobeBin))
	_, err = s2.RunJob(context.Background(), "/tv/a.mkv")
	if err == nil || !strings.Contains(err.Error(), "ffmpeg path is required") {
		t.Errorf("expected ffmpeg path error, got %v", err)
	}
}

func TestRunJob_PresetRemux(t *testing.T) {
	const src = "/tv/Show/Season 1/ep01.mp4"
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, src, []byte("original"), 0o644)
	r := &fakeRunner{fs: fs, probes: map[string]string{src: probeHEVCAAC}}
	rep := &recordingReporter{}
	s := newTestService(fs, r, rep, model.CLIOptions{Flavor: model.FlavorPreset})

	res, err := s.RunJob(context.Background(), src)
	if err != nil {
		t.Fatalf("RunJob() error: %v", err)
	}
	if res.Verdict.Rule != "container" {
		t.Errorf("rule = %q, want container", res.Verdict.Rule)
	}
	if got, want := strings.Join(r.lastArgs(ffmpegBin), " "), "-i "+src+" -c copy -y /tv/Show/Season 1/ep01.cache.mkv"; got != want {
		t.Errorf("ffmpeg args = %q, want %q", got, want)
	}
	if res.OutputPath != "/tv/Show/Season 1/ep01.mkv" {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}
	if res.Bytes != int64(len("transcoded")) {
		t.Errorf("Bytes = %d", res.Bytes)
	}
	for _, gone := range []string{src, "/tv/Show/Season 1/ep01.cache.mkv"} {
		if ok, _ := afero.Exists(fs, gone); ok {
			t.Errorf("%s should be gone", gone)
		}
	}

	last := rep.lastUpdate()
	if last.Stage != progress.StageCompleted || !strings.Contains(last.Message, "Saved: ep01.mkv") {
		t.Errorf("final update = %+v, want StageCompleted with Saved", last)
	}
	if len(rep.results) != 1 || rep.results[0].Err != nil || rep.results[0].OutputPath != res.OutputPath {
		t.Errorf("results = %+v", rep.results)
	}

	var sawProgress bool
	for _, u := range rep.updates {
		if u.Stage == progress.StageProcessing && u.Percent == 50 {
			sawProgress = true
			if u.Speed == nil || *u.Speed != "2.00x" {
				t.Errorf("speed = %v", u.Speed)
			}
		}
	}
	if !sawProgress {
		t.Errorf("expected a 50%% processing update, got %+v", rep.updates)
	}
}

func TestRunJob_PresetOptimizedVersion(t *testing.T) {
	const src = "/tv/Show/Season 1/ep01.mkv"
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, src, []byte("original"), 0o644)
	r := &fakeRunner{fs: fs, probes: map[string]string{src: strings.Replace(probeHEVCAAC, "mov,mp4", "matroska,webm", 1)}}
	s := newTestService(fs, r, &recordingReporter{}, model.CLIOptions{Flavor: model.FlavorPreset})

	res, err := s.RunJob(context.Background(), src)
	if err != nil {
		t.Fatalf("RunJob() error: %v", err)
	}
	args := strings.Join(r.lastArgs(ffmpegBin), " ")
	for _, want := range []string{"-c:v:0 h264", "-c:a:0 ac3", "-c:a:1 copy"} {
		if !strings.Contains(args, want) {
			t.Errorf("ffmpeg args missing %q: %s", want, args)
		}
	}
	wantDest := "/tv/Show/Season 1/Plex Versions/Optimized for TV/Show/ep01.mkv"
	if res.OutputPath != wantDest || res.Placement == nil || !res.Placement.Optimized {
		t.Errorf("placement = %+v, output %q", res.Placement, res.OutputPath)
	}
	if data, _ := afero.ReadFile(fs, src); string(data) != "original" {
		t.Errorf("source should be untouched, got %q", data)
	}

	// The optimized version now exists, so a second pass skips the file.
	s2 := newTestService(fs, r, &recordingReporter{}, model.CLIOptions{Flavor: model.FlavorPreset})
	res2, err := s2.RunJob(context.Background(), src)
	if err != nil {
		t.Fatalf("second RunJob() error: %v", err)
	}
	if !res2.Skipped || res2.Verdict.Rule != "optimized" {
		t.Errorf("second pass = %+v, want optimized skip", res2.Verdict)
	}
}

func TestRunJob_QSV(t *testing.T) {
	const src = "/tv/Show/Season 1/ep01.mkv"
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, src, []byte("original"), 0o644)
	r := &fakeRunner{fs: fs, probes: map[string]string{src: probeH264AC3}}
	s := newTestService(fs, r, &recordingReporter{}, model.CLIOptions{Flavor: model.FlavorQSV})

	res, err := s.RunJob(context.Background(), src)
	if err != nil {
		t.Fatalf("RunJob() error: %v", err)
	}
	args := strings.Join(r.lastArgs(ffmpegBin), " ")
	for _, want := range []string{"-init_hw_device qsv=hw", "-c:v:0 hevc_qsv", "-map 0:a:0 -c:a:0 copy", "-y /tv/Show/Season 1/ep01.cache.mkv"} {
		if !strings.Contains(args, want) {
			t.Errorf("ffmpeg args missing %q: %s", want, args)
		}
	}
	if res.OutputPath != src {
		t.Errorf("OutputPath = %q, want source replaced", res.OutputPath)
	}
	if data, _ := afero.ReadFile(fs, src); string(data) != "transcoded" {
		t.Errorf("source content = %q", data)
	}
}

func TestRunJob_DryRun(t *testing.T) {
	const src = "/tv/Show/Season 1/ep01.mp4"
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs, probes: map[string]string{src: probeHEVCAAC}}
	rep := &recordingReporter{}
	s := NewService(
		WithFFprobePath(ffprobeBin),
		WithCLIOptions(model.CLIOptions{Flavor: model.FlavorPreset, DryRun: true}),
		WithRunner(r),
		WithReporter(rep),
		WithFs(fs),
	)

	res, err := s.RunJob(context.Background(), src)
	if err != nil {
		t.Fatalf("RunJob (dry-run) error: %v", err)
	}
	if !res.Planned || res.Plan == nil {
		t.Fatalf("expected Planned with non-nil Plan")
	}
	if r.count(ffmpegBin) != 0 {
		t.Errorf("ffmpeg should not run in dry-run")
	}
	last := rep.lastUpdate()
	if last.Stage != progress.StageCompleted || !strings.Contains(last.Message, "Planned:") {
		t.Errorf("final update = %+v, want StageCompleted with Planned", last)
	}
}

func TestRunJob_Skips(t *testing.T) {
	tests := []struct {
		name       string
		flavor     model.Flavor
		path       string
		probes     map[string]string
		wantRule   string
		wantProbes int
	}{
		{
			name:       "clean preset file",
			flavor:     model.FlavorPreset,
			path:       "/tv/Show/Season 1/ep01.mkv",
			probes:     map[string]string{"/tv/Show/Season 1/ep01.mkv": probeH264AC3},
			wantRule:   "clean",
			wantProbes: 1,
		},
		{
			name:     "cache file is not probed",
			flavor:   model.FlavorPreset,
			path:     "/tv/Show/Season 1/ep01.cache.mkv",
			wantRule: "cache",
		},
		{
			name:       "hevc already",
			flavor:     model.FlavorQSV,
			path:       "/tv/Show/Season 1/ep01.mp4",
			probes:     map[string]string{"/tv/Show/Season 1/ep01.mp4": probeHEVCAAC},
			wantRule:   "clean",
			wantProbes: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			r := &fakeRunner{fs: fs, probes: tt.probes}
			rep := &recordingReporter{}
			s := newTestService(fs, r, rep, model.CLIOptions{Flavor: tt.flavor})

			res, err := s.RunJob(context.Background(), tt.path)
			if err != nil {
				t.Fatalf("RunJob() error: %v", err)
			}
			if !res.Skipped || res.Verdict.Rule != tt.wantRule {
				t.Errorf("result = %+v, want skipped by %q", res.Verdict, tt.wantRule)
			}
			if got := r.count(ffprobeBin); got != tt.wantProbes {
				t.Errorf("ffprobe calls = %d, want %d", got, tt.wantProbes)
			}
			if r.count(ffmpegBin) != 0 {
				t.Errorf("ffmpeg should not run")
			}
			if len(rep.results) != 1 || !rep.results[0].Skipped {
				t.Errorf("results = %+v", rep.results)
			}
		})
	}
}

func TestRunJob_ProbeFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := &fakeRunner{fs: fs}
	rep := &recordingReporter{}
	s := newTestService(fs, r, rep, model.CLIOptions{Flavor: model.FlavorPreset})

	res, err := s.RunJob(context.Background(), "/tv/Show/Season 1/notes.txt")
	if !errors.Is(err, probe.ErrProbeFailed) {
		t.Fatalf("error = %v, want ErrProbeFailed", err)
	}
	if !res.Skipped || res.Plan != nil {
		t.Errorf("result = %+v, want skipped without plan", res)
	}
	if len(rep.results) != 1 || !rep.results[0].Skipped || rep.results[0].Err == nil {
		t.Errorf("results = %+v", rep.results)
	}
}

func TestRunJob_TranscodeFailureRemovesPartial(t *testing.T) {
	const src = "/tv/Show/Season 1/ep01.mp4"
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, src, []byte("original"), 0o644)
	r := &fakeRunner{fs: fs, probes: map[string]string{src: probeHEVCAAC}, ffmpegFail: true}
	rep := &recordingReporter{}
	s := newTestService(fs, r, rep, model.CLIOptions{Flavor: model.FlavorPreset})

	_, err := s.RunJob(context.Background(), src)
	if !errors.Is(err, ErrTranscodeFailed) {
		t.Fatalf("error = %v, want ErrTranscodeFailed", err)
	}
	if ok, _ := afero.Exists(fs, "/tv/Show/Season 1/ep01.cache.mkv"); ok {
		t.Errorf("partial output should be removed")
	}
	if ok, _ := afero.Exists(fs, src); !ok {
		t.Errorf("source should be kept")
	}
	if last := rep.lastUpdate(); last.Stage != progress.StageError {
		t.Errorf("final stage = %q, want error", last.Stage)
	}
}

func TestRunJob_VerboseForwardsLogs(t *testing.T) {
	const src = "/tv/Show/Season 1/ep01.mp4"
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, src, []byte("original"), 0o644)
	r := &fakeRunner{fs: fs, probes: map[string]string{src: probeHEVCAAC}}
	rep := &recordingReporter{}
	s := newTestService(fs, r, rep, model.CLIOptions{Flavor: model.FlavorPreset, Verbose: true})

	if _, err := s.RunJob(context.Background(), src); err != nil {
		t.Fatalf("RunJob() error: %v", err)
	}
	if len(rep.logs) == 0 || rep.logs[0].Stream != progress.StreamStderr {
		t.Errorf("logs = %+v", rep.logs)
	}
}

func TestRunBatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	paths := []string{"/tv/A/Season 1/a.mp4", "/tv/B/Season 1/b.mkv", "/tv/C/Season 1/c.mkv"}
	for _, p := range paths {
		_ = afero.WriteFile(fs, p, []byte("original"), 0o644)
	}
	r := &fakeRunner{fs: fs, probes: map[string]string{
		paths[0]: probeHEVCAAC,
		paths[1]: probeH264AC3,
	}}
	rep := &recordingReporter{}

	jobs := NewFileJobs(paths)
	out := RunBatch(context.Background(), jobs, 2, func(j model.FileJob) *Service {
		return NewService(
			WithFFprobePath(ffprobeBin),
			WithFFmpegPath(ffmpegBin),
			WithCLIOptions(model.CLIOptions{Flavor: model.FlavorPreset}),
			WithRunner(r),
			WithReporter(rep),
			WithJobID(j.ID),
			WithFs(fs),
		)
	})

	if len(out) != 3 {
		t.Fatalf("len(out) = %d", len(out))
	}
	for i, o := range out {
		if o.Job.Path != paths[i] || o.Job.ID == "" {
			t.Errorf("outcome %d job = %+v", i, o.Job)
		}
	}
	if out[0].Err != nil || out[0].Result.OutputPath != "/tv/A/Season 1/a.mkv" {
		t.Errorf("a: %+v, %v", out[0].Result, out[0].Err)
	}
	if out[1].Err != nil || !out[1].Result.Skipped {
		t.Errorf("b should be skipped as clean: %+v, %v", out[1].Result, out[1].Err)
	}
	if !errors.Is(out[2].Err, probe.ErrProbeFailed) {
		t.Errorf("c error = %v, want ErrProbeFailed", out[2].Err)
	}
	if len(rep.results) != 3 {
		t.Errorf("results = %d, want one per job", len(rep.results))
	}
}
