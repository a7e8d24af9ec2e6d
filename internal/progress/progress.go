package progress

import "time"

// Stage identifies a high-level step in the per-file pipeline.
type Stage string

const (
	StageQueued      Stage = "queued"
	StageProbe       Stage = "probe"
	StageTesting     Stage = "testing"
	StageProcessing  Stage = "processing"
	StagePostProcess Stage = "post-processing"
	StageCompleted   Stage = "completed"
	StageSkipped     Stage = "skipped"
	StageError       Stage = "error"
)

// Terminal reports whether no further updates follow s for a job.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageSkipped || s == StageError
}

// LogStream indicates which stream produced a log line.
type LogStream int

const (
	StreamStdout LogStream = iota
	StreamStderr
)

// Update conveys progress or stage changes for a job.
// Percent is 0..100 when known; set to a negative value (e.g., -1) to mean unknown.
type Update struct {
	JobID   string
	Stage   Stage
	Percent float64

	ETA     *time.Duration // optional
	Bytes   *int64         // optional cumulative output bytes
	Speed   *string        // optional, e.g. "1.2x"
	Message string         // short human-friendly status line
}

// Log is a raw output line associated with a job.
type Log struct {
	JobID  string
	Stream LogStream
	Line   string
}

// Result is emitted once per job when it completes, is skipped or fails.
type Result struct {
	JobID      string
	Source     string
	OutputPath string
	Bytes      int64
	Skipped    bool
	Err        error // nil on success
}

// Reporter is implemented by UI or any observer interested in progress events.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Update(Update) {}
func (Nop) Log(Log)       {}
func (Nop) Result(Result) {}
