// Package preset implements the TV-normalization flavor: an ordered rule
// chain that triages files and a matching command builder that remuxes
// them to mkv with h264 video first, ac3 first audio and no extras.
package preset

import "plexprep/internal/probe"

// SharedInfo carries what the classifier found to the command builder.
type SharedInfo struct {
	ContainerIsNotMKV   bool `json:"container_is_not_mkv,omitempty"`
	NonH264             bool `json:"non_h264,omitempty"`
	NonZeroVideoStream  bool `json:"non_0_video_stream,omitempty"`
	VideoStreamIndex    int  `json:"video_stream_index,omitempty"`
	FirstAudioIsNotAC3  bool `json:"first_audio_is_not_ac3,omitempty"`
	HasChapters         bool `json:"has_chapters,omitempty"`
	HasSubtitles        bool `json:"has_subtitles,omitempty"`
	HasAttachment       bool `json:"has_attachment,omitempty"`
	HasUnwantedMetadata bool `json:"has_unwanted_metadata,omitempty"`
}

// Map returns the set flags keyed by their snake_case names.
func (s SharedInfo) Map() map[string]any {
	m := map[string]any{}
	set := func(k string, v bool) {
		if v {
			m[k] = true
		}
	}
	set("container_is_not_mkv", s.ContainerIsNotMKV)
	set("non_h264", s.NonH264)
	set("non_0_video_stream", s.NonZeroVideoStream)
	if s.NonZeroVideoStream {
		m["video_stream_index"] = s.VideoStreamIndex
	}
	set("first_audio_is_not_ac3", s.FirstAudioIsNotAC3)
	set("has_chapters", s.HasChapters)
	set("has_subtitles", s.HasSubtitles)
	set("has_attachment", s.HasAttachment)
	set("has_unwanted_metadata", s.HasUnwantedMetadata)
	return m
}

// Decision is the classifier's verdict for one file.
type Decision struct {
	NeedsProcessing bool
	// Rule names the rule that ended evaluation, or "clean" when none did.
	Rule   string
	Reason string
	Info   SharedInfo
}

// allowedTags are the only stream tag keys a clean file may carry.
var allowedTags = map[string]struct{}{
	"language": {},
	"DURATION": {},
	"ENCODER":  {},
}

func hasUnwantedTags(s probe.Stream) bool {
	for _, k := range s.TagKeys() {
		if _, ok := allowedTags[k]; !ok {
			return true
		}
	}
	return false
}
