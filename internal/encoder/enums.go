package encoder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfiguration is wrapped by every settings validation failure.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ConfigError describes one rejected setting.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %v: %s", ErrInvalidConfiguration, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfiguration }

// Preset is the hevc_qsv speed/quality preset.
type Preset string

const (
	PresetVeryFast Preset = "veryfast"
	PresetFaster   Preset = "faster"
	PresetFast     Preset = "fast"
	PresetMedium   Preset = "medium"
	PresetSlow     Preset = "slow"
	PresetSlower   Preset = "slower"
	PresetVerySlow Preset = "veryslow"
)

// Presets lists every accepted preset, fastest first.
var Presets = []Preset{PresetVeryFast, PresetFaster, PresetFast, PresetMedium, PresetSlow, PresetSlower, PresetVerySlow}

// ParsePreset accepts a preset name, case-insensitively.
func ParsePreset(s string) (Preset, error) {
	for _, p := range Presets {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", &ConfigError{Field: "preset", Value: s, Reason: "unknown preset"}
}

// Tune is the encoder tuning hint.
type Tune string

const (
	TuneFilm        Tune = "film"
	TuneAnimation   Tune = "animation"
	TuneGrain       Tune = "grain"
	TuneStillImage  Tune = "stillimage"
	TuneFastDecode  Tune = "fastdecode"
	TuneZeroLatency Tune = "zerolatency"
)

var Tunes = []Tune{TuneFilm, TuneAnimation, TuneGrain, TuneStillImage, TuneFastDecode, TuneZeroLatency}

// ParseTune accepts a tune name, case-insensitively.
func ParseTune(s string) (Tune, error) {
	for _, t := range Tunes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", &ConfigError{Field: "tune", Value: s, Reason: "unknown tune"}
}

// RateControl selects how hevc_qsv spends bits.
type RateControl string

const (
	RateCQP   RateControl = "CQP"    // constant quantizer
	RateICQ   RateControl = "ICQ"    // intelligent constant quality
	RateLAICQ RateControl = "LA_ICQ" // ICQ with look-ahead
	RateVBR   RateControl = "VBR"
	RateLA    RateControl = "LA" // VBR with look-ahead
	RateCBR   RateControl = "CBR"
)

var RateControls = []RateControl{RateCQP, RateICQ, RateLAICQ, RateVBR, RateLA, RateCBR}

// ParseRateControl accepts a rate-control mode name, case-insensitively.
func ParseRateControl(s string) (RateControl, error) {
	for _, rc := range RateControls {
		if strings.EqualFold(s, string(rc)) {
			return rc, nil
		}
	}
	return "", &ConfigError{Field: "ratecontrol", Value: s, Reason: "unknown rate-control method"}
}

// Container is an output container used when the source container is not
// kept.
type Container string

const (
	ContainerMKV Container = "mkv"
	ContainerAVI Container = "avi"
	ContainerMP4 Container = "mp4"
)

var Containers = []Container{ContainerMKV, ContainerAVI, ContainerMP4}

// ParseContainer accepts "mkv", ".mkv" and so on.
func ParseContainer(s string) (Container, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), ".")
	for _, c := range Containers {
		if strings.EqualFold(trimmed, string(c)) {
			return c, nil
		}
	}
	return "", &ConfigError{Field: "dest_container", Value: s, Reason: "unsupported container"}
}

func (c Container) Ext() string { return "." + string(c) }
