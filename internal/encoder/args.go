package encoder

import (
	"strconv"
	"strings"

	"plexprep/internal/ffcmd"
	"plexprep/internal/util"
)

// Backend is the hardware device family the bootstrap arguments target.
const Backend = "qsv"

// Mode is the resolved argument source for a build: Structured or
// RawOverride.
type Mode interface {
	isMode()
}

// Structured derives every argument from the typed settings.
type Structured struct {
	Settings Settings
}

// RawOverride passes the user's option text through. Empty Main or
// Advanced keep the defaults for that group.
type RawOverride struct {
	Video    []string
	Main     []string
	Advanced []string
}

func (Structured) isMode()  {}
func (RawOverride) isMode() {}

// Mode resolves the settings into their argument source.
func (s Settings) Mode() Mode {
	if s.Advanced {
		return RawOverride{
			Video:    ffcmd.Tokenize(s.CustomOptions),
			Main:     ffcmd.Tokenize(s.MainOptions),
			Advanced: ffcmd.Tokenize(s.AdvancedOptions),
		}
	}
	return Structured{Settings: s}
}

// BuildVideoArgs returns the codec arguments for output video stream
// streamID.
func BuildVideoArgs(s Settings, streamID int) ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	id := strconv.Itoa(streamID)
	args := []string{"-c:v:" + id, "hevc_qsv"}

	switch m := s.Mode().(type) {
	case RawOverride:
		return append(args, m.Video...), nil
	case Structured:
		st := m.Settings
		args = append(args, "-preset", string(st.Preset), "-tune", string(st.Tune))
		bitrate := strconv.Itoa(st.AverageBitrate) + "M"
		switch st.RateControl {
		case RateCQP:
			args = append(args, "-q", strconv.Itoa(st.ConstantQuantizerScale))
		case RateICQ:
			args = append(args, "-global_quality", strconv.Itoa(st.ConstantQualityScale))
		case RateLAICQ:
			args = append(args, "-global_quality", strconv.Itoa(st.ConstantQualityScale), "-look_ahead", "1")
		case RateVBR:
			args = append(args, "-b:v:"+id, bitrate)
		case RateLA:
			args = append(args, "-b:v:"+id, bitrate, "-look_ahead", "1")
		case RateCBR:
			args = append(args, "-b:v:"+id, bitrate, "-maxrate", bitrate)
		}
	}
	return args, nil
}

// HWArgs returns the device bootstrap options for backend: main holds the
// pre-input device setup, advanced the post-input upload filter.
func HWArgs(backend string) (main, advanced ffcmd.Group) {
	main.Set("-init_hw_device", backend+"=hw")
	main.Set("-filter_hw_device", "hw")
	advanced.Set("-vf", "hwupload=extra_hw_frames=64,format="+backend)
	return main, advanced
}

// OptionGroups returns the main and advanced groups for s. Structured mode
// adds the muxing queue bound; raw override replaces a whole group when its
// text is non-empty.
func OptionGroups(s Settings) (main, advanced ffcmd.Group) {
	main, advanced = HWArgs(Backend)
	switch m := s.Mode().(type) {
	case Structured:
		advanced.Set("-max_muxing_queue_size", strconv.Itoa(m.Settings.MaxMuxingQueueSize))
	case RawOverride:
		if len(m.Main) > 0 {
			main.Replace(m.Main)
		}
		if len(m.Advanced) > 0 {
			advanced.Replace(m.Advanced)
		}
	}
	return main, advanced
}

// OutputPath returns where the encoded file goes given the caller's
// proposed fileOut.
func OutputPath(s Settings, fileOut string) string {
	if s.KeepContainer {
		return fileOut
	}
	return util.ReplaceExt(fileOut, string(s.DestContainer))
}

var imageCodecs = map[string]struct{}{
	"alias_pix": {}, "apng": {}, "brender_pix": {}, "dds": {}, "dpx": {},
	"exr": {}, "fits": {}, "gif": {}, "mjpeg": {}, "mjpegb": {}, "pam": {},
	"pbm": {}, "pcx": {}, "pfm": {}, "pgm": {}, "pgmyuv": {}, "pgx": {},
	"photocd": {}, "pictor": {}, "pixlet": {}, "png": {}, "ppm": {}, "ptx": {},
	"sgi": {}, "sunrast": {}, "tiff": {}, "vc1image": {}, "wmv3image": {},
	"xbm": {}, "xface": {}, "xpm": {}, "xwd": {},
}

// NeedsProcessing reports whether a video stream with codec should be
// re-encoded. Still images and streams already in HEVC are left alone.
func NeedsProcessing(codec string) bool {
	c := strings.ToLower(strings.TrimSpace(codec))
	if _, ok := imageCodecs[c]; ok {
		return false
	}
	return c != "hevc" && c != "h265"
}
