package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"plexprep/internal/dirs"
	"plexprep/internal/encoder"
)

// ErrConfigExists is returned by WriteDefault when the target exists and
// overwriting was not requested.
var ErrConfigExists = errors.New("config file already exists")

// Config is the merged view of defaults, config file, PLEXPREP_* environment
// and command-line flags.
type Config struct {
	Flavor  string  `mapstructure:"flavor" toml:"flavor"`
	Jobs    int     `mapstructure:"jobs" toml:"jobs"`
	Verbose bool    `mapstructure:"verbose" toml:"verbose"`
	FFmpeg  string  `mapstructure:"ffmpeg" toml:"ffmpeg"`
	FFprobe string  `mapstructure:"ffprobe" toml:"ffprobe"`
	Logging Logging `mapstructure:"logging" toml:"logging"`
	Encoder Encoder `mapstructure:"encoder" toml:"encoder"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// Encoder is the hevc_qsv section. Enum values stay strings here and are
// checked by Settings.
type Encoder struct {
	Advanced               bool   `mapstructure:"advanced" toml:"advanced"`
	MaxMuxingQueueSize     int    `mapstructure:"max_muxing_queue_size" toml:"max_muxing_queue_size"`
	Preset                 string `mapstructure:"preset" toml:"preset"`
	Tune                   string `mapstructure:"tune" toml:"tune"`
	RateControl            string `mapstructure:"rate_control" toml:"rate_control"`
	ConstantQuantizerScale int    `mapstructure:"constant_quantizer_scale" toml:"constant_quantizer_scale"`
	ConstantQualityScale   int    `mapstructure:"constant_quality_scale" toml:"constant_quality_scale"`
	AverageBitrate         int    `mapstructure:"average_bitrate" toml:"average_bitrate"`
	MainOptions            string `mapstructure:"main_options" toml:"main_options"`
	AdvancedOptions        string `mapstructure:"advanced_options" toml:"advanced_options"`
	CustomOptions          string `mapstructure:"custom_options" toml:"custom_options"`
	KeepContainer          bool   `mapstructure:"keep_container" toml:"keep_container"`
	DestContainer          string `mapstructure:"dest_container" toml:"dest_container"`
}

// Default returns the built-in configuration.
func Default() Config {
	es := encoder.DefaultSettings()
	return Config{
		Flavor: "hevc_qsv",
		Jobs:   2,
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Encoder: Encoder{
			Advanced:               es.Advanced,
			MaxMuxingQueueSize:     es.MaxMuxingQueueSize,
			Preset:                 string(es.Preset),
			Tune:                   string(es.Tune),
			RateControl:            string(es.RateControl),
			ConstantQuantizerScale: es.ConstantQuantizerScale,
			ConstantQualityScale:   es.ConstantQualityScale,
			AverageBitrate:         es.AverageBitrate,
			MainOptions:            es.MainOptions,
			AdvancedOptions:        es.AdvancedOptions,
			CustomOptions:          es.CustomOptions,
			KeepContainer:          es.KeepContainer,
			DestContainer:          string(es.DestContainer),
		},
	}
}

// Settings converts the section into validated encoder settings. Errors wrap
// encoder.ErrInvalidConfiguration.
func (e Encoder) Settings() (encoder.Settings, error) {
	preset, err := encoder.ParsePreset(e.Preset)
	if err != nil {
		return encoder.Settings{}, fmt.Errorf("encoder: %w", err)
	}
	tune, err := encoder.ParseTune(e.Tune)
	if err != nil {
		return encoder.Settings{}, fmt.Errorf("encoder: %w", err)
	}
	rc, err := encoder.ParseRateControl(e.RateControl)
	if err != nil {
		return encoder.Settings{}, fmt.Errorf("encoder: %w", err)
	}
	dest, err := encoder.ParseContainer(e.DestContainer)
	if err != nil {
		return encoder.Settings{}, fmt.Errorf("encoder: %w", err)
	}

	s := encoder.Settings{
		Advanced:               e.Advanced,
		MaxMuxingQueueSize:     e.MaxMuxingQueueSize,
		Preset:                 preset,
		Tune:                   tune,
		RateControl:            rc,
		ConstantQuantizerScale: e.ConstantQuantizerScale,
		ConstantQualityScale:   e.ConstantQualityScale,
		AverageBitrate:         e.AverageBitrate,
		MainOptions:            e.MainOptions,
		AdvancedOptions:        e.AdvancedOptions,
		CustomOptions:          e.CustomOptions,
		KeepContainer:          e.KeepContainer,
		DestContainer:          dest,
	}
	if err := s.Validate(); err != nil {
		return encoder.Settings{}, fmt.Errorf("encoder: %w", err)
	}
	return s, nil
}

// Init wires Viper with config paths, env, defaults, and flag bindings on the
// global instance. Call it once flags are parsed so --config is honored.
func Init(root *cobra.Command) error {
	return initViper(viper.GetViper(), root.PersistentFlags())
}

func initViper(v *viper.Viper, flags *pflag.FlagSet) error {
	setDefaults(v)

	if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
	} else {
		if cfgDir, err := dirs.ConfigDir(); err == nil {
			v.AddConfigPath(cfgDir)
		}
		v.SetConfigName("config") // supports config.{yaml|yml|json|toml}
	}

	// Environment variables: PLEXPREP_*, nested keys joined with '_'
	v.SetEnvPrefix("PLEXPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for key, name := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"flavor":         "flavor",
	"verbose":        "verbose",
	"jobs":           "jobs",
	"ffmpeg":         "ffmpeg",
	"ffprobe":        "ffprobe",
	"logging.level":  "log-level",
	"logging.format": "log-format",
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("flavor", d.Flavor)
	v.SetDefault("jobs", d.Jobs)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("ffmpeg", d.FFmpeg)
	v.SetDefault("ffprobe", d.FFprobe)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	e := d.Encoder
	v.SetDefault("encoder.advanced", e.Advanced)
	v.SetDefault("encoder.max_muxing_queue_size", e.MaxMuxingQueueSize)
	v.SetDefault("encoder.preset", e.Preset)
	v.SetDefault("encoder.tune", e.Tune)
	v.SetDefault("encoder.rate_control", e.RateControl)
	v.SetDefault("encoder.constant_quantizer_scale", e.ConstantQuantizerScale)
	v.SetDefault("encoder.constant_quality_scale", e.ConstantQualityScale)
	v.SetDefault("encoder.average_bitrate", e.AverageBitrate)
	v.SetDefault("encoder.main_options", e.MainOptions)
	v.SetDefault("encoder.advanced_options", e.AdvancedOptions)
	v.SetDefault("encoder.custom_options", e.CustomOptions)
	v.SetDefault("encoder.keep_container", e.KeepContainer)
	v.SetDefault("encoder.dest_container", e.DestContainer)
}

// Load returns the configuration resolved by the global Viper instance.
func Load() (Config, error) {
	return load(viper.GetViper())
}

func load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// UsedFile returns the config file Viper read, or "" when none was found.
func UsedFile() string {
	return viper.ConfigFileUsed()
}

// WriteDefault writes the built-in configuration as TOML to path.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := dirs.Ensure(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	header := "# plexprep configuration\n# Environment variables use the PLEXPREP_ prefix, e.g. PLEXPREP_ENCODER_RATE_CONTROL=CBR\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
