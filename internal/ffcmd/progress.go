package ffcmd

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"plexprep/internal/progress"
)

var statField = regexp.MustCompile(`(\w+)=\s*(\S+)`)

// ProgressState tracks ffmpeg output across lines. It understands both the
// periodic stats line on stderr ("frame=... size=... time=... speed=...")
// and the key=value stream written by -progress.
type ProgressState struct {
	OutTime   time.Duration
	SpeedStr  string
	TotalSize int64
}

// UpdateFromLine folds line into the state and returns an update when the
// line completes a progress report.
func (ps *ProgressState) UpdateFromLine(line string, jobID string, durationSec float64) (progress.Update, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return progress.Update{}, false
	}

	// -progress output: one key per line, "progress=" closes a block.
	if !strings.Contains(line, " ") {
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			return progress.Update{}, false
		}
		switch kv[0] {
		case "out_time_ms", "out_time_us":
			if v, err := strconv.ParseInt(kv[1], 10, 64); err == nil {
				ps.OutTime = time.Duration(v) * time.Microsecond
			}
		case "speed":
			ps.SpeedStr = kv[1]
		case "total_size":
			if v, err := strconv.ParseInt(kv[1], 10, 64); err == nil {
				ps.TotalSize = v
			}
		case "progress":
			return ps.update(jobID, durationSec), true
		}
		return progress.Update{}, false
	}

	fields := statField.FindAllStringSubmatch(line, -1)
	var sawTime bool
	for _, f := range fields {
		switch f[1] {
		case "time":
			if d, ok := parseClock(f[2]); ok {
				ps.OutTime = d
				sawTime = true
			}
		case "size", "Lsize":
			if b, ok := parseSize(f[2]); ok {
				ps.TotalSize = b
			}
		case "speed":
			ps.SpeedStr = f[2]
		}
	}
	if !sawTime {
		return progress.Update{}, false
	}
	return ps.update(jobID, durationSec), true
}

func (ps *ProgressState) update(jobID string, durationSec float64) progress.Update {
	percent := -1.0
	if durationSec > 0 {
		percent = ps.OutTime.Seconds() / durationSec * 100
		if percent > 100 {
			percent = 100
		}
		if percent < 0 {
			percent = 0
		}
	}

	u := progress.Update{
		JobID:   jobID,
		Stage:   progress.StageProcessing,
		Percent: percent,
		Message: "Processing",
	}
	if ps.SpeedStr != "" && ps.SpeedStr != "N/A" {
		s := ps.SpeedStr
		u.Speed = &s
		if x, err := strconv.ParseFloat(strings.TrimSuffix(s, "x"), 64); err == nil && x > 0 && durationSec > 0 {
			remain := durationSec - ps.OutTime.Seconds()
			if remain > 0 {
				eta := time.Duration(remain / x * float64(time.Second))
				u.ETA = &eta
			}
		}
	}
	if ps.TotalSize > 0 {
		b := ps.TotalSize
		u.Bytes = &b
	}
	return u
}

// parseClock parses ffmpeg's HH:MM:SS.ff timestamps.
func parseClock(s string) (time.Duration, bool) {
	neg := strings.HasPrefix(s, "-")
	parts := strings.Split(strings.TrimPrefix(s, "-"), ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second))
	if neg {
		return 0, true
	}
	return d, true
}

// parseSize parses sizes like "1024kB", "1024KiB" or "512B".
func parseSize(s string) (int64, bool) {
	lower := strings.ToLower(s)
	mult := int64(1)
	switch {
	case strings.HasSuffix(lower, "kib"), strings.HasSuffix(lower, "kb"):
		mult = 1024
	case strings.HasSuffix(lower, "mib"), strings.HasSuffix(lower, "mb"):
		mult = 1024 * 1024
	}
	num := strings.TrimRight(lower, "kmib")
	v, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}
