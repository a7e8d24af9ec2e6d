package preset

import (
	"errors"
	"log/slog"
	"path/filepath"

	"plexprep/internal/ffcmd"
	"plexprep/internal/logging"
	"plexprep/internal/probe"
	"plexprep/internal/util"
)

// ErrNothingToDo is returned when the decision calls for no command.
var ErrNothingToDo = errors.New("no command needed")

// CachePath returns the worker output location for original:
// <dir>/<stem>.cache.mkv. The cache rule skips such files on rescans.
func CachePath(original string) string {
	return filepath.Join(filepath.Dir(original), util.Stem(original)+".cache.mkv")
}

// Builder turns a classifier decision into an ffmpeg command.
type Builder struct {
	Logger *slog.Logger
}

// NewBuilder returns a Builder logging to logger.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{Logger: logging.OrDiscard(logger)}
}

type buildState struct {
	info    SharedInfo
	in, out string
	video   []string
	pending []string
}

// Command shapes. Each one overwrites out, which may be a cache file left
// behind by an interrupted run.
func remux(in, out string) []string {
	return []string{"-i", in, "-c", "copy", "-y", out}
}

func defaultTemplate(st *buildState) []string {
	args := []string{"-i", st.in, "-map", "0:v:0"}
	args = append(args, st.video...)
	return append(args,
		"-map", "0:a", "-c:a", "copy",
		"-sn", "-map_metadata", "-1", "-map_chapters", "-1",
		"-y", st.out)
}

func dualAudio(st *buildState) []string {
	args := []string{"-i", st.in, "-map", "0:v:0"}
	args = append(args, st.video...)
	return append(args,
		"-map", "0:a:0", "-c:a:0", "ac3",
		"-map", "0:a:0", "-c:a:1", "copy",
		"-sn", "-map_metadata", "-1", "-map_chapters", "-1",
		"-y", st.out)
}

type buildRule struct {
	name string
	eval func(st *buildState) (outcome, []string)
}

var builderRules = []buildRule{
	{RuleContainer, func(st *buildState) (outcome, []string) {
		if st.info.ContainerIsNotMKV {
			return stop, remux(st.in, st.out)
		}
		return pass, nil
	}},
	{RuleVideoCodec, func(st *buildState) (outcome, []string) {
		if st.info.NonH264 {
			st.video = []string{"-c:v:0", "h264"}
			return flag, nil
		}
		return pass, nil
	}},
	{RuleStreamOrder, func(st *buildState) (outcome, []string) {
		if st.info.NonZeroVideoStream {
			st.pending = defaultTemplate(st)
			return flag, nil
		}
		return pass, nil
	}},
	{RuleFirstAudio, func(st *buildState) (outcome, []string) {
		if st.info.FirstAudioIsNotAC3 {
			return stop, dualAudio(st)
		}
		return pass, nil
	}},
	{RuleVideoCodec, func(st *buildState) (outcome, []string) {
		if st.info.NonH264 {
			return stop, defaultTemplate(st)
		}
		return pass, nil
	}},
	{RuleChapters, func(st *buildState) (outcome, []string) {
		if st.info.HasChapters {
			return stop, defaultTemplate(st)
		}
		return pass, nil
	}},
	{RuleStreams, func(st *buildState) (outcome, []string) {
		if st.info.HasSubtitles || st.info.HasAttachment || st.info.HasUnwantedMetadata {
			return stop, defaultTemplate(st)
		}
		return pass, nil
	}},
}

// Build returns the command normalizing in into out for decision d. Every
// shape except the plain remux maps the first video stream, so a probe
// without video yields ErrNothingToDo.
func (b *Builder) Build(pr *probe.Result, d Decision, in, out string) (*ffcmd.Plan, error) {
	st := &buildState{
		info:  d.Info,
		in:    in,
		out:   out,
		video: []string{"-c:v:0", "copy"},
	}
	_, hasVideo := pr.FirstVideo()

	for _, r := range builderRules {
		if r.name != RuleContainer && !hasVideo {
			break
		}
		o, args := r.eval(st)
		if o == stop {
			b.Logger.Debug("command selected", "stage", "processing", "rule", r.name, "path", in)
			return ffcmd.NewPlan(in, out, args), nil
		}
	}
	if st.pending != nil {
		b.Logger.Debug("command selected", "stage", "processing", "rule", RuleStreamOrder, "path", in)
		return ffcmd.NewPlan(in, out, st.pending), nil
	}
	return nil, ErrNothingToDo
}
