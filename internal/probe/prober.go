package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"plexprep/internal/util"
)

// ErrProbeFailed marks a file whose layout could not be read. Callers treat
// it as "no decision": the file is not processed.
var ErrProbeFailed = errors.New("probe failed")

// Prober runs ffprobe through a CmdRunner.
type Prober struct {
	FFprobePath string
	Runner      util.CmdRunner
}

// New returns a Prober using the host runner when r is nil.
func New(ffprobePath string, r util.CmdRunner) *Prober {
	if r == nil {
		r = util.NewDefaultRunner()
	}
	return &Prober{FFprobePath: ffprobePath, Runner: r}
}

// Args returns the ffprobe argument vector used for path.
func Args(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams", "-show_chapters",
		path,
	}
}

// Probe reads the layout of path. Every failure wraps ErrProbeFailed.
func (p *Prober) Probe(ctx context.Context, path string) (*Result, error) {
	if p.FFprobePath == "" {
		return nil, fmt.Errorf("%w: ffprobe path is required", ErrProbeFailed)
	}
	res, err := p.Runner.Run(ctx, util.CmdSpec{
		Path:          p.FFprobePath,
		Args:          Args(path),
		CaptureStdout: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe %q: %v", ErrProbeFailed, path, err)
	}
	pr, err := ParseJSON(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProbeFailed, path, err)
	}
	pr.Path = path
	pr.Container = util.Ext(path)
	return pr, nil
}

// ParseJSON converts raw ffprobe JSON output into a Result.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*Result, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	if raw.Format.FormatName == "" && len(raw.Streams) == 0 {
		return nil, errors.New("ffprobe reported no format and no streams")
	}
	return buildResult(&raw), nil
}

type ffprobeOutput struct {
	Format   ffprobeFormat    `json:"format"`
	Streams  []ffprobeStream  `json:"streams"`
	Chapters []ffprobeChapter `json:"chapters"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ffprobeStream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Disposition map[string]int    `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

type ffprobeChapter struct {
	ID        int               `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

func buildResult(raw *ffprobeOutput) *Result {
	pr := &Result{
		FormatName: raw.Format.FormatName,
		Duration:   parseFloat(raw.Format.Duration),
		Size:       parseInt64(raw.Format.Size),
	}
	if raw.Format.Filename != "" {
		pr.Path = raw.Format.Filename
		pr.Container = strings.ToLower(filepath.Ext(raw.Format.Filename))
	}
	for _, s := range raw.Streams {
		pr.Streams = append(pr.Streams, Stream{
			Index:       s.Index,
			CodecType:   parseCodecType(s.CodecType),
			CodecName:   strings.ToLower(s.CodecName),
			Tags:        s.Tags,
			AttachedPic: s.Disposition["attached_pic"] == 1,
		})
	}
	for _, c := range raw.Chapters {
		pr.Chapters = append(pr.Chapters, Chapter{
			ID:    c.ID,
			Start: parseFloat(c.StartTime),
			End:   parseFloat(c.EndTime),
			Title: c.Tags["title"],
		})
	}
	return pr
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
