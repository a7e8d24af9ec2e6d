package encoder

import (
	"errors"
	"strconv"

	"plexprep/internal/ffcmd"
	"plexprep/internal/probe"
)

// ErrNoStreamsToProcess is returned by Build when every video stream is
// already HEVC or a still image.
var ErrNoStreamsToProcess = errors.New("no video streams need processing")

// Mapper turns a probe result into a full hevc_qsv command. Video streams
// that need processing are re-encoded; everything else is copied.
type Mapper struct {
	Settings Settings
}

// NewMapper returns a Mapper for s.
func NewMapper(s Settings) *Mapper {
	return &Mapper{Settings: s}
}

// StreamsNeedProcessing reports whether any video stream of pr needs
// re-encoding.
func (m *Mapper) StreamsNeedProcessing(pr *probe.Result) bool {
	for _, s := range pr.VideoStreams() {
		if needsEncode(s) {
			return true
		}
	}
	return false
}

// needsEncode excludes cover art: a stream flagged attached_pic is copied
// whatever its codec.
func needsEncode(s probe.Stream) bool {
	return !s.AttachedPic && NeedsProcessing(s.CodecName)
}

// StreamArgs returns the -map and codec arguments for every stream of pr in
// container order.
func (m *Mapper) StreamArgs(pr *probe.Result) ([]string, error) {
	var args []string
	counts := map[string]int{}
	for _, s := range pr.Streams {
		spec := specifier(s.CodecType)
		if spec == "" {
			continue
		}
		n := counts[spec]
		counts[spec]++
		id := strconv.Itoa(n)

		args = append(args, "-map", "0:"+spec+":"+id)
		if spec == "v" && needsEncode(s) {
			enc, err := BuildVideoArgs(m.Settings, n)
			if err != nil {
				return nil, err
			}
			args = append(args, enc...)
			continue
		}
		args = append(args, "-c:"+spec+":"+id, "copy")
	}
	return args, nil
}

// Build assembles the ffmpeg invocation reading in and writing the
// container-adjusted form of out.
func (m *Mapper) Build(pr *probe.Result, in, out string) (*ffcmd.Plan, error) {
	if err := m.Settings.Validate(); err != nil {
		return nil, err
	}
	if !m.StreamsNeedProcessing(pr) {
		return nil, ErrNoStreamsToProcess
	}
	streams, err := m.StreamArgs(pr)
	if err != nil {
		return nil, err
	}
	output := OutputPath(m.Settings, out)
	main, advanced := OptionGroups(m.Settings)

	args := []string{"-hide_banner", "-loglevel", "info"}
	args = append(args, main.Args()...)
	args = append(args, "-i", in)
	args = append(args, advanced.Args()...)
	args = append(args, streams...)
	args = append(args, "-y", output)
	return ffcmd.NewPlan(in, output, args), nil
}

func specifier(t probe.CodecType) string {
	switch t {
	case probe.CodecVideo:
		return "v"
	case probe.CodecAudio:
		return "a"
	case probe.CodecSubtitle:
		return "s"
	case probe.CodecAttachment:
		return "t"
	case probe.CodecData:
		return "d"
	default:
		return ""
	}
}
