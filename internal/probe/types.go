// Package probe reads the stream layout of a media file with ffprobe.
package probe

import "strings"

// CodecType is the kind of a container stream.
type CodecType string

const (
	CodecVideo      CodecType = "video"
	CodecAudio      CodecType = "audio"
	CodecSubtitle   CodecType = "subtitle"
	CodecAttachment CodecType = "attachment"
	CodecData       CodecType = "data"
	CodecOther      CodecType = "other"
)

func parseCodecType(s string) CodecType {
	switch CodecType(strings.ToLower(s)) {
	case CodecVideo:
		return CodecVideo
	case CodecAudio:
		return CodecAudio
	case CodecSubtitle:
		return CodecSubtitle
	case CodecAttachment:
		return CodecAttachment
	case CodecData:
		return CodecData
	default:
		return CodecOther
	}
}

// Stream is one entry of the container's stream list, in container order.
type Stream struct {
	Index       int
	CodecType   CodecType
	CodecName   string
	Tags        map[string]string
	AttachedPic bool
}

// TagKeys returns the stream's tag keys.
func (s Stream) TagKeys() []string {
	keys := make([]string, 0, len(s.Tags))
	for k := range s.Tags {
		keys = append(keys, k)
	}
	return keys
}

// Chapter is a container chapter marker. Start and End are seconds.
type Chapter struct {
	ID    int
	Start float64
	End   float64
	Title string
}

// Result is the probed layout of one file.
type Result struct {
	Path       string
	Container  string // lower-cased extension with leading dot, e.g. ".mkv"
	FormatName string
	Duration   float64
	Size       int64
	Streams    []Stream
	Chapters   []Chapter
}

// StreamAt returns the stream at position i and whether it exists.
func (r *Result) StreamAt(i int) (Stream, bool) {
	if r == nil || i < 0 || i >= len(r.Streams) {
		return Stream{}, false
	}
	return r.Streams[i], true
}

// VideoStreams returns the video streams in container order.
func (r *Result) VideoStreams() []Stream {
	return r.ofType(CodecVideo)
}

// FirstVideo returns the container position of the first video stream.
func (r *Result) FirstVideo() (int, bool) {
	if r == nil {
		return 0, false
	}
	for i, s := range r.Streams {
		if s.CodecType == CodecVideo {
			return i, true
		}
	}
	return 0, false
}

// AnyVideoNot reports whether at least one video stream has a codec other
// than codec.
func (r *Result) AnyVideoNot(codec string) bool {
	for _, s := range r.VideoStreams() {
		if !strings.EqualFold(s.CodecName, codec) {
			return true
		}
	}
	return false
}

func (r *Result) ofType(t CodecType) []Stream {
	if r == nil {
		return nil
	}
	var out []Stream
	for _, s := range r.Streams {
		if s.CodecType == t {
			out = append(out, s)
		}
	}
	return out
}
