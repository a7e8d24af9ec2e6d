package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"plexprep/internal/encoder"
	"plexprep/internal/ffcmd"
	"plexprep/internal/model"
	"plexprep/internal/preset"
	"plexprep/internal/probe"
	"plexprep/internal/util"
)

// Verdict is a flavor's answer to "does this file need work".
type Verdict struct {
	NeedsProcessing bool
	Rule            string
	Reason          string
	// Decision is set by the preset flavor and forwarded to its builder.
	Decision *preset.Decision
}

// Processor is one decision engine.
type Processor interface {
	Flavor() model.Flavor
	// Prefilter excludes files by path alone, before probing.
	Prefilter(path string) (Verdict, bool)
	Test(pr *probe.Result, path string) Verdict
	Build(pr *probe.Result, v Verdict, in string) (*ffcmd.Plan, error)
	// RedirectLossy reports whether non-h264 sources keep their original
	// and get an optimized version next to it.
	RedirectLossy() bool
}

// NewProcessor returns the engine for flavor.
func NewProcessor(flavor model.Flavor, settings encoder.Settings, fs afero.Fs, logger *slog.Logger) (Processor, error) {
	switch flavor {
	case model.FlavorQSV, "":
		return &qsvProcessor{mapper: encoder.NewMapper(settings), logger: logger}, nil
	case model.FlavorPreset:
		return &presetProcessor{
			classifier: preset.NewClassifier(fs, logger),
			builder:    preset.NewBuilder(logger),
		}, nil
	default:
		return nil, fmt.Errorf("unknown flavor %q", flavor)
	}
}

type qsvProcessor struct {
	mapper *encoder.Mapper
	logger *slog.Logger
}

func (p *qsvProcessor) Flavor() model.Flavor { return model.FlavorQSV }

func (p *qsvProcessor) Prefilter(string) (Verdict, bool) { return Verdict{}, false }

func (p *qsvProcessor) Test(pr *probe.Result, path string) Verdict {
	if p.mapper.StreamsNeedProcessing(pr) {
		return Verdict{NeedsProcessing: true, Rule: "video_codec", Reason: "video stream needs hevc_qsv encoding"}
	}
	return Verdict{Rule: "clean", Reason: "all video streams are hevc or still images"}
}

func (p *qsvProcessor) Build(pr *probe.Result, _ Verdict, in string) (*ffcmd.Plan, error) {
	return p.mapper.Build(pr, in, qsvCachePath(in))
}

func (p *qsvProcessor) RedirectLossy() bool { return false }

// qsvCachePath is the encoder's working output next to in; the container
// may still be swapped by the encoder settings.
func qsvCachePath(in string) string {
	return filepath.Join(filepath.Dir(in), util.Stem(in)+".cache"+filepath.Ext(in))
}

type presetProcessor struct {
	classifier *preset.Classifier
	builder    *preset.Builder
}

func (p *presetProcessor) Flavor() model.Flavor { return model.FlavorPreset }

func (p *presetProcessor) Prefilter(path string) (Verdict, bool) {
	d, ok := p.classifier.Prefilter(path)
	if !ok {
		return Verdict{}, false
	}
	return verdictFrom(d), true
}

func (p *presetProcessor) Test(pr *probe.Result, path string) Verdict {
	return verdictFrom(p.classifier.Classify(pr, path))
}

func (p *presetProcessor) Build(pr *probe.Result, v Verdict, in string) (*ffcmd.Plan, error) {
	var d preset.Decision
	if v.Decision != nil {
		d = *v.Decision
	}
	return p.builder.Build(pr, d, in, preset.CachePath(in))
}

func (p *presetProcessor) RedirectLossy() bool { return true }

func verdictFrom(d preset.Decision) Verdict {
	return Verdict{NeedsProcessing: d.NeedsProcessing, Rule: d.Rule, Reason: d.Reason, Decision: &d}
}
