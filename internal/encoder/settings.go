package encoder

import "fmt"

// Bounds for the numeric settings.
const (
	MinQueueSize   = 1024
	MaxQueueSize   = 10240
	MinCQP         = 0
	MaxCQP         = 51
	MinCQ          = 1
	MaxCQ          = 51
	MinBitrateMbps = 1
	MaxBitrateMbps = 20
)

// Settings configures the hevc_qsv encoder for one library.
type Settings struct {
	// Advanced switches from the structured fields below to the raw
	// MainOptions, AdvancedOptions and CustomOptions text.
	Advanced bool

	MaxMuxingQueueSize int
	Preset             Preset
	Tune               Tune
	RateControl        RateControl

	ConstantQuantizerScale int // CQP, 0..51
	ConstantQualityScale   int // ICQ/LA_ICQ global_quality, 1..51
	AverageBitrate         int // Mbit/s for VBR/LA/CBR, 1..20

	MainOptions     string
	AdvancedOptions string
	CustomOptions   string

	KeepContainer bool
	DestContainer Container
}

// DefaultSettings returns the stock configuration.
func DefaultSettings() Settings {
	return Settings{
		Advanced:               false,
		MaxMuxingQueueSize:     2048,
		Preset:                 PresetSlow,
		Tune:                   TuneFilm,
		RateControl:            RateLAICQ,
		ConstantQuantizerScale: 25,
		ConstantQualityScale:   23,
		AverageBitrate:         5,
		MainOptions:            "",
		AdvancedOptions:        "-strict -2\n-max_muxing_queue_size 2048\n",
		CustomOptions:          "-preset slow\n-tune film\n-global_quality 23\n-look_ahead 1\n",
		KeepContainer:          true,
		DestContainer:          ContainerMKV,
	}
}

// Validate checks every field, including the ones the active mode ignores.
func (s Settings) Validate() error {
	if s.MaxMuxingQueueSize < MinQueueSize || s.MaxMuxingQueueSize > MaxQueueSize {
		return rangeErr("max_muxing_queue_size", s.MaxMuxingQueueSize, MinQueueSize, MaxQueueSize)
	}
	if _, err := ParsePreset(string(s.Preset)); err != nil {
		return err
	}
	if _, err := ParseTune(string(s.Tune)); err != nil {
		return err
	}
	if _, err := ParseRateControl(string(s.RateControl)); err != nil {
		return err
	}
	if s.ConstantQuantizerScale < MinCQP || s.ConstantQuantizerScale > MaxCQP {
		return rangeErr("constant_quantizer_scale", s.ConstantQuantizerScale, MinCQP, MaxCQP)
	}
	if s.ConstantQualityScale < MinCQ || s.ConstantQualityScale > MaxCQ {
		return rangeErr("constant_quality_scale", s.ConstantQualityScale, MinCQ, MaxCQ)
	}
	if s.AverageBitrate < MinBitrateMbps || s.AverageBitrate > MaxBitrateMbps {
		return rangeErr("average_bitrate", s.AverageBitrate, MinBitrateMbps, MaxBitrateMbps)
	}
	if !s.KeepContainer {
		if _, err := ParseContainer(string(s.DestContainer)); err != nil {
			return err
		}
	}
	return nil
}

func rangeErr(field string, v, lo, hi int) error {
	return &ConfigError{Field: field, Value: v, Reason: fmt.Sprintf("must be within %d..%d", lo, hi)}
}
