package preset

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"plexprep/internal/probe"
)

const epPath = "/tv/Show/Season 1/ep01.mkv"

type streamSpec struct {
	typ   probe.CodecType
	codec string
	tags  map[string]string
}

func layout(specs ...streamSpec) *probe.Result {
	pr := &probe.Result{Container: ".mkv"}
	for i, s := range specs {
		pr.Streams = append(pr.Streams, probe.Stream{Index: i, CodecType: s.typ, CodecName: s.codec, Tags: s.tags})
	}
	return pr
}

func v(codec string) streamSpec { return streamSpec{typ: probe.CodecVideo, codec: codec} }
func a(codec string) streamSpec { return streamSpec{typ: probe.CodecAudio, codec: codec} }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		pr        *probe.Result
		wantNeeds bool
		wantRule  string
		wantInfo  SharedInfo
	}{
		{
			name:     "clean h264 + ac3",
			path:     epPath,
			pr:       layout(v("h264"), a("ac3")),
			wantRule: RuleClean,
		},
		{
			name:     "clean with allowed tags",
			path:     epPath,
			pr:       layout(streamSpec{probe.CodecVideo, "h264", map[string]string{"DURATION": "00:22:00", "ENCODER": "Lavc"}}, streamSpec{probe.CodecAudio, "ac3", map[string]string{"language": "eng"}}),
			wantRule: RuleClean,
		},
		{
			name:      "mp4 container",
			path:      "/tv/Show/Season 1/ep01.mp4",
			pr:        layout(v("hevc"), a("aac")),
			wantNeeds: true,
			wantRule:  RuleContainer,
			wantInfo:  SharedInfo{ContainerIsNotMKV: true},
		},
		{
			name:      "video not first",
			path:      epPath,
			pr:        layout(a("ac3"), v("h264")),
			wantNeeds: true,
			wantRule:  RuleStreamOrder,
			wantInfo:  SharedInfo{NonZeroVideoStream: true, VideoStreamIndex: 1},
		},
		{
			name:      "first audio aac",
			path:      epPath,
			pr:        layout(v("h264"), a("aac")),
			wantNeeds: true,
			wantRule:  RuleFirstAudio,
			wantInfo:  SharedInfo{FirstAudioIsNotAC3: true},
		},
		{
			name:     "hevc alone only sets the flag",
			path:     epPath,
			pr:       layout(v("hevc"), a("ac3")),
			wantRule: RuleClean,
			wantInfo: SharedInfo{NonH264: true},
		},
		{
			name:      "hevc with chapters",
			path:      epPath,
			pr:        func() *probe.Result { pr := layout(v("hevc"), a("ac3")); pr.Chapters = []probe.Chapter{{ID: 0}}; return pr }(),
			wantNeeds: true,
			wantRule:  RuleChapters,
			wantInfo:  SharedInfo{NonH264: true, HasChapters: true},
		},
		{
			name:      "subtitles",
			path:      epPath,
			pr:        layout(v("h264"), a("ac3"), streamSpec{typ: probe.CodecSubtitle, codec: "subrip"}),
			wantNeeds: true,
			wantRule:  RuleStreams,
			wantInfo:  SharedInfo{HasSubtitles: true},
		},
		{
			name:      "attachment",
			path:      epPath,
			pr:        layout(v("h264"), a("ac3"), streamSpec{typ: probe.CodecAttachment}),
			wantNeeds: true,
			wantRule:  RuleStreams,
			wantInfo:  SharedInfo{HasAttachment: true},
		},
		{
			name:      "unwanted tags",
			path:      epPath,
			pr:        layout(streamSpec{probe.CodecVideo, "h264", map[string]string{"title": "Pilot"}}, a("ac3")),
			wantNeeds: true,
			wantRule:  RuleStreams,
			wantInfo:  SharedInfo{HasUnwantedMetadata: true},
		},
		{
			name:     "single stream passes first-audio rule",
			path:     epPath,
			pr:       layout(v("h264")),
			wantRule: RuleClean,
		},
		{
			name:     "second stream not audio passes first-audio rule",
			path:     epPath,
			pr:       layout(v("h264"), v("mjpeg")),
			wantRule: RuleClean,
			wantInfo: SharedInfo{NonH264: true},
		},
		{
			name:      "audio only file",
			path:      epPath,
			pr:        layout(a("ac3")),
			wantNeeds: true,
			wantRule:  RuleStreamOrder,
		},
		{
			name:     "no streams",
			path:     epPath,
			pr:       layout(),
			wantRule: RuleClean,
		},
		{
			name:     "cache file skipped regardless of content",
			path:     "/tv/Show/Season 1/ep01.cache.mkv",
			pr:       layout(a("aac"), streamSpec{typ: probe.CodecSubtitle, codec: "ass"}),
			wantRule: RuleCache,
		},
		{
			name:     "partial download skipped",
			path:     "/tv/Show/Season 1/ep01.mkv.part",
			pr:       layout(v("h264"), a("aac")),
			wantRule: RuleCache,
		},
		{
			name:     "inside optimized tree",
			path:     "/tv/Show/Season 1/Plex Versions/Optimized for TV/Show/ep01.mkv",
			pr:       layout(v("hevc"), a("aac")),
			wantRule: RuleOptimized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(afero.NewMemMapFs(), nil)
			d := c.Classify(tt.pr, tt.path)
			if d.NeedsProcessing != tt.wantNeeds {
				t.Errorf("NeedsProcessing = %v, want %v (%s)", d.NeedsProcessing, tt.wantNeeds, d.Reason)
			}
			if d.Rule != tt.wantRule {
				t.Errorf("Rule = %q, want %q", d.Rule, tt.wantRule)
			}
			if d.Info != tt.wantInfo {
				t.Errorf("Info = %+v, want %+v", d.Info, tt.wantInfo)
			}
			if again := c.Classify(tt.pr, tt.path); !reflect.DeepEqual(again, d) {
				t.Errorf("second Classify() = %+v, first %+v", again, d)
			}
		})
	}
}

func TestClassify_ExistingOptimizedVersion(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/tv/Show/Season 1/Plex Versions/Optimized for TV/Show/ep01.mkv", []byte("x"), 0o644)
	c := NewClassifier(fs, nil)

	d := c.Classify(layout(v("hevc"), a("aac")), epPath)
	if d.NeedsProcessing || d.Rule != RuleOptimized {
		t.Errorf("Classify() = %+v, want optimized skip", d)
	}
}

func TestPrefilter(t *testing.T) {
	c := NewClassifier(afero.NewMemMapFs(), nil)
	if d, ok := c.Prefilter("/tv/ep01.cache.mkv"); !ok || d.Rule != RuleCache {
		t.Errorf("Prefilter(cache) = %+v, %v", d, ok)
	}
	if _, ok := c.Prefilter(epPath); ok {
		t.Errorf("Prefilter(%s) should not exclude", epPath)
	}
	if _, ok := c.Prefilter("/tv/noext"); ok {
		t.Errorf("Prefilter(noext) should not exclude")
	}
}

func TestSharedInfoMap(t *testing.T) {
	m := SharedInfo{NonZeroVideoStream: true, VideoStreamIndex: 2, NonH264: true}.Map()
	want := map[string]any{"non_0_video_stream": true, "video_stream_index": 2, "non_h264": true}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("Map() = %v, want %v", m, want)
	}
}

func TestBuild(t *testing.T) {
	const in = "/tv/Show/Season 1/ep01.mkv"
	out := CachePath(in)
	tests := []struct {
		name string
		pr   *probe.Result
		info SharedInfo
		want string
	}{
		{
			name: "remux",
			pr:   layout(v("hevc"), a("aac")),
			info: SharedInfo{ContainerIsNotMKV: true, NonH264: true},
			want: "-i " + in + " -c copy -y " + out,
		},
		{
			name: "dual audio",
			pr:   layout(v("h264"), a("aac")),
			info: SharedInfo{FirstAudioIsNotAC3: true},
			want: "-i " + in + " -map 0:v:0 -c:v:0 copy -map 0:a:0 -c:a:0 ac3 -map 0:a:0 -c:a:1 copy -sn -map_metadata -1 -map_chapters -1 -y " + out,
		},
		{
			name: "dual audio with h264 encode",
			pr:   layout(v("mpeg2video"), a("mp2")),
			info: SharedInfo{NonH264: true, FirstAudioIsNotAC3: true},
			want: "-i " + in + " -map 0:v:0 -c:v:0 h264 -map 0:a:0 -c:a:0 ac3 -map 0:a:0 -c:a:1 copy -sn -map_metadata -1 -map_chapters -1 -y " + out,
		},
		{
			name: "stream order",
			pr:   layout(a("ac3"), v("h264")),
			info: SharedInfo{NonZeroVideoStream: true, VideoStreamIndex: 1},
			want: "-i " + in + " -map 0:v:0 -c:v:0 copy -map 0:a -c:a copy -sn -map_metadata -1 -map_chapters -1 -y " + out,
		},
		{
			name: "non h264 forces encode",
			pr:   layout(v("hevc"), a("ac3")),
			info: SharedInfo{NonH264: true},
			want: "-i " + in + " -map 0:v:0 -c:v:0 h264 -map 0:a -c:a copy -sn -map_metadata -1 -map_chapters -1 -y " + out,
		},
		{
			name: "chapters",
			pr:   layout(v("h264"), a("ac3")),
			info: SharedInfo{HasChapters: true},
			want: "-i " + in + " -map 0:v:0 -c:v:0 copy -map 0:a -c:a copy -sn -map_metadata -1 -map_chapters -1 -y " + out,
		},
		{
			name: "unwanted metadata",
			pr:   layout(v("h264"), a("ac3")),
			info: SharedInfo{HasUnwantedMetadata: true},
			want: "-i " + in + " -map 0:v:0 -c:v:0 copy -map 0:a -c:a copy -sn -map_metadata -1 -map_chapters -1 -y " + out,
		},
	}
	b := NewBuilder(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := b.Build(tt.pr, Decision{NeedsProcessing: true, Info: tt.info}, in, out)
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			if got := strings.Join(plan.Args, " "); got != tt.want {
				t.Errorf("Build()\n got %q\nwant %q", got, tt.want)
			}
			if plan.Output != out {
				t.Errorf("Output = %q, want %q", plan.Output, out)
			}
		})
	}
}

func TestBuild_OverwritesOutput(t *testing.T) {
	b := NewBuilder(nil)
	out := "/tv/Show/Season 1/ep01.cache.mkv"
	for _, info := range []SharedInfo{
		{ContainerIsNotMKV: true},
		{FirstAudioIsNotAC3: true},
		{NonZeroVideoStream: true},
		{NonH264: true},
		{HasChapters: true},
		{HasSubtitles: true},
	} {
		plan, err := b.Build(layout(v("h264"), a("ac3")), Decision{NeedsProcessing: true, Info: info}, "/tv/Show/Season 1/ep01.mkv", out)
		if err != nil {
			t.Fatalf("Build(%+v) error: %v", info, err)
		}
		n := len(plan.Args)
		if n < 2 || plan.Args[n-2] != "-y" || plan.Args[n-1] != out {
			t.Errorf("Build(%+v) args tail = %q, want [-y %s]", info, plan.Args[max(0, n-2):], out)
		}
	}
}

func TestBuild_NothingToDo(t *testing.T) {
	b := NewBuilder(nil)
	tests := []struct {
		name string
		pr   *probe.Result
		d    Decision
	}{
		{"clean", layout(v("h264"), a("ac3")), Decision{Rule: RuleClean}},
		{"audio only", layout(a("ac3")), Decision{NeedsProcessing: true, Rule: RuleStreamOrder}},
		{"chapters without video", layout(a("aac"), a("ac3")), Decision{NeedsProcessing: true, Info: SharedInfo{HasChapters: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.Build(tt.pr, tt.d, "in.mkv", "out.cache.mkv"); !errors.Is(err, ErrNothingToDo) {
				t.Errorf("Build() error = %v, want ErrNothingToDo", err)
			}
		})
	}
}

func TestClassifyThenBuild(t *testing.T) {
	c := NewClassifier(afero.NewMemMapFs(), nil)
	b := NewBuilder(nil)
	pr := layout(v("hevc"), a("aac"))
	pr.Container = ".mp4"
	path := "/tv/Show/Season 1/ep01.mp4"

	d := c.Classify(pr, path)
	plan, err := b.Build(pr, d, path, CachePath(path))
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got, want := strings.Join(plan.Args, " "), "-i "+path+" -c copy -y /tv/Show/Season 1/ep01.cache.mkv"; got != want {
		t.Errorf("plan = %q, want %q", got, want)
	}
}

func TestCachePath(t *testing.T) {
	if got := CachePath("/tv/Show/ep01.1080p.mp4"); got != "/tv/Show/ep01.1080p.cache.mkv" {
		t.Errorf("CachePath() = %q", got)
	}
}
