package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrNotFound is returned when a required binary cannot be located.
var ErrNotFound = errors.New("binary not found")

// FindFFmpeg returns the path to ffmpeg. A non-empty customPath is tried
// first as a file and then as a PATH lookup.
func FindFFmpeg(customPath string) (string, error) {
	return find("ffmpeg", customPath)
}

// FindFFprobe returns the path to ffprobe, resolved like FindFFmpeg.
func FindFFprobe(customPath string) (string, error) {
	return find("ffprobe", customPath)
}

func find(name, customPath string) (string, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err == nil {
			return customPath, nil
		}
		if p, err := exec.LookPath(customPath); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: could not find %s at %q", ErrNotFound, name, customPath)
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%w: could not find %s in PATH, please install ffmpeg", ErrNotFound, name)
}
