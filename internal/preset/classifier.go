package preset

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"plexprep/internal/logging"
	"plexprep/internal/placement"
	"plexprep/internal/probe"
	"plexprep/internal/util"
)

// Rule names, in evaluation order.
const (
	RuleCache       = "cache"
	RuleOptimized   = "optimized"
	RuleContainer   = "container"
	RuleVideoCodec  = "video_codec"
	RuleStreamOrder = "stream_order"
	RuleFirstAudio  = "first_audio"
	RuleChapters    = "chapters"
	RuleStreams     = "streams"
	RuleClean       = "clean"
)

// outcome is what a rule did with the file.
type outcome int

const (
	pass outcome = iota // rule does not apply
	flag                // decision updated, keep evaluating
	stop                // decision final
)

type state struct {
	pr   *probe.Result
	path string
	d    Decision
}

type rule struct {
	name     string
	pathOnly bool
	eval     func(c *Classifier, st *state) (outcome, string)
}

// Classifier triages files for the TV-normalization flavor.
type Classifier struct {
	Fs     afero.Fs
	Logger *slog.Logger
	rules  []rule
}

// NewClassifier returns a Classifier checking existing optimized versions
// on fs. A nil fs means the OS filesystem.
func NewClassifier(fs afero.Fs, logger *slog.Logger) *Classifier {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Classifier{Fs: fs, Logger: logging.OrDiscard(logger), rules: classifierRules}
}

var classifierRules = []rule{
	{name: RuleCache, pathOnly: true, eval: ruleCache},
	{name: RuleOptimized, pathOnly: true, eval: ruleOptimized},
	{name: RuleContainer, eval: ruleContainer},
	{name: RuleVideoCodec, eval: ruleVideoCodec},
	{name: RuleStreamOrder, eval: ruleStreamOrder},
	{name: RuleFirstAudio, eval: ruleFirstAudio},
	{name: RuleChapters, eval: ruleChapters},
	{name: RuleStreams, eval: ruleStreams},
}

// Prefilter runs the rules that need only the path. ok is true when the
// file is excluded and should not even be probed.
func (c *Classifier) Prefilter(path string) (Decision, bool) {
	st := &state{path: path}
	for _, r := range c.rules {
		if !r.pathOnly {
			continue
		}
		if out, reason := r.eval(c, st); out == stop {
			return c.finish(st, r.name, reason), true
		}
	}
	return Decision{}, false
}

// Classify evaluates the full rule chain for path with layout pr. The
// result depends only on its inputs and the optimized-version tree on Fs.
func (c *Classifier) Classify(pr *probe.Result, path string) Decision {
	st := &state{pr: pr, path: path}
	last := ""
	lastReason := ""
	for _, r := range c.rules {
		out, reason := r.eval(c, st)
		switch out {
		case stop:
			return c.finish(st, r.name, reason)
		case flag:
			c.Logger.Debug(reason, "stage", "testing", "rule", r.name, "path", path)
			last, lastReason = r.name, reason
		}
	}
	if !st.d.NeedsProcessing {
		return c.finish(st, RuleClean, "file does not need processing")
	}
	return c.finish(st, last, lastReason)
}

func (c *Classifier) finish(st *state, name, reason string) Decision {
	st.d.Rule = name
	st.d.Reason = reason
	c.Logger.Debug(reason, "stage", "testing", "rule", name, "path", st.path, "needs_processing", st.d.NeedsProcessing)
	return st.d
}

func ruleCache(_ *Classifier, st *state) (outcome, string) {
	parts := strings.Split(filepath.Base(st.path), ".")
	if len(parts) >= 2 && parts[len(parts)-2] == "cache" {
		return stop, "file is cache, skipping"
	}
	if strings.EqualFold(filepath.Ext(st.path), ".part") {
		return stop, "file extension is .part, skipping"
	}
	return pass, ""
}

func ruleOptimized(c *Classifier, st *state) (outcome, string) {
	if placement.IsOptimized(st.path) {
		return stop, "file already has been optimized, skipping"
	}
	if ok, _ := afero.Exists(c.Fs, placement.OptimizedPath(st.path)); ok {
		return stop, "optimized version already exists, skipping"
	}
	return pass, ""
}

func ruleContainer(_ *Classifier, st *state) (outcome, string) {
	if util.Ext(st.path) != ".mkv" {
		st.d.NeedsProcessing = true
		st.d.Info.ContainerIsNotMKV = true
		return stop, "container is not .mkv"
	}
	return pass, ""
}

func ruleVideoCodec(_ *Classifier, st *state) (outcome, string) {
	if st.pr.AnyVideoNot("h264") {
		st.d.Info.NonH264 = true
		return flag, "video stream is not h264"
	}
	return pass, ""
}

func ruleStreamOrder(c *Classifier, st *state) (outcome, string) {
	first, ok := st.pr.StreamAt(0)
	if !ok {
		c.Logger.Debug("undefined stream layout: no streams", "stage", "testing", "rule", RuleStreamOrder, "path", st.path)
		return pass, ""
	}
	if first.CodecType == probe.CodecVideo {
		return pass, ""
	}
	st.d.NeedsProcessing = true
	if i, ok := st.pr.FirstVideo(); ok {
		st.d.Info.NonZeroVideoStream = true
		st.d.Info.VideoStreamIndex = st.pr.Streams[i].Index
	}
	return flag, "first stream is not video"
}

func ruleFirstAudio(c *Classifier, st *state) (outcome, string) {
	second, ok := st.pr.StreamAt(1)
	if !ok {
		c.Logger.Debug("undefined stream layout: fewer than 2 streams", "stage", "testing", "rule", RuleFirstAudio, "path", st.path)
		return pass, ""
	}
	if second.CodecType != probe.CodecAudio {
		return pass, ""
	}
	if second.CodecName != "ac3" {
		st.d.NeedsProcessing = true
		st.d.Info.FirstAudioIsNotAC3 = true
		return stop, "first audio stream is not ac3"
	}
	return pass, ""
}

func ruleChapters(_ *Classifier, st *state) (outcome, string) {
	if len(st.pr.Chapters) > 0 {
		st.d.NeedsProcessing = true
		st.d.Info.HasChapters = true
		return stop, "file has chapters"
	}
	return pass, ""
}

func ruleStreams(_ *Classifier, st *state) (outcome, string) {
	for _, s := range st.pr.Streams {
		switch {
		case s.CodecType == probe.CodecSubtitle:
			st.d.NeedsProcessing = true
			st.d.Info.HasSubtitles = true
			return stop, "file has subtitles"
		case s.CodecType != probe.CodecAudio && s.CodecType != probe.CodecVideo:
			st.d.NeedsProcessing = true
			st.d.Info.HasAttachment = true
			return stop, "file has a non-audio, non-video stream"
		case hasUnwantedTags(s):
			st.d.NeedsProcessing = true
			st.d.Info.HasUnwantedMetadata = true
			return stop, "file has unwanted metadata"
		}
	}
	return pass, ""
}
