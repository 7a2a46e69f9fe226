package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	appName    = "microdrop"
	envPrefix  = "MICRODROP"
	configName = "config"
	configType = "toml"
)

var (
	ErrConfigExists  = errors.New("configuration file already exists")
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Model    ModelConfig    `mapstructure:"model"`
	Output   OutputConfig   `mapstructure:"output"`
	Behavior BehaviorConfig `mapstructure:"behavior"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AudioConfig struct {
	Device          string `mapstructure:"device"`           // empty selects the system default
	MaxDuration     int    `mapstructure:"max_duration"`     // seconds, 0 = unlimited
	CaptureCapacity int    `mapstructure:"capture_capacity"` // samples, 0 = default
}

type ModelConfig struct {
	DefaultModel        string `mapstructure:"default_model"`
	DefaultQuantization string `mapstructure:"default_quantization"` // "none", "q4_0", "q5_1", "q8_0"
	CacheDir            string `mapstructure:"cache_dir"`
	Language            string `mapstructure:"language"`
	Threads             int    `mapstructure:"threads"`
}

type OutputConfig struct {
	EnableClipboard bool   `mapstructure:"enable_clipboard"`
	EnablePaste     bool   `mapstructure:"enable_paste"`
	TerminalPaste   bool   `mapstructure:"terminal_paste"`   // Ctrl+Shift+V instead of Ctrl+V on Linux/Windows
	TimestampFormat string `mapstructure:"timestamp_format"` // "none", "simple", "detailed"
	AppendFile      string `mapstructure:"append_file"`
	NotifyCommand   string `mapstructure:"notify_command"` // "desktop" or a shell command
}

type BehaviorConfig struct {
	AudioCues        bool    `mapstructure:"audio_cues"`
	SilenceThreshold float64 `mapstructure:"silence_threshold"` // RMS below which a recording is skipped, 0 = off
}

type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"` // empty disables the /metrics endpoint
}

// Overrides carries command-line values that take precedence over the file.
// Zero values leave the file setting alone.
type Overrides struct {
	Device          string
	MaxDuration     int
	Model           string
	Quantization    string
	Paste           bool
	TerminalPaste   bool
	NoClipboard     bool
	AppendFile      string
	TimestampFormat string
	NotifyCommand   string
	LogLevel        string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("audio.device", "")
	v.SetDefault("audio.max_duration", 0)
	v.SetDefault("audio.capture_capacity", 0)

	v.SetDefault("model.default_model", "base.en")
	v.SetDefault("model.default_quantization", "none")
	v.SetDefault("model.cache_dir", "")
	v.SetDefault("model.language", "en")
	v.SetDefault("model.threads", 0)

	v.SetDefault("output.enable_clipboard", true)
	v.SetDefault("output.enable_paste", false)
	v.SetDefault("output.terminal_paste", false)
	v.SetDefault("output.timestamp_format", "none")
	v.SetDefault("output.append_file", "")
	v.SetDefault("output.notify_command", "")

	v.SetDefault("behavior.audio_cues", false)
	v.SetDefault("behavior.silence_threshold", 0.0)

	v.SetDefault("metrics.listen_addr", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode defaults: %w", err)
	}
	return cfg, nil
}

// Load reads the config from cfgFile, or from the platform config
// directory when cfgFile is empty. A missing default file yields defaults;
// MICRODROP_* environment variables override both.
func Load(cfgFile string) (*Config, error) {
	v := newViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(configDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path (the platform
// config path when empty) and returns the path written. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) (string, error) {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType(configType)

	var err error
	if force {
		err = v.WriteConfigAs(path)
	} else {
		err = v.SafeWriteConfigAs(path)
	}
	if err != nil {
		var exists viper.ConfigFileAlreadyExistsError
		if errors.As(err, &exists) {
			return "", fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
		}
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}

// Validate checks values that the rest of the program cannot recover from.
func (c *Config) Validate() error {
	switch {
	case c.Audio.MaxDuration < 0:
		return fmt.Errorf("%w: audio.max_duration must not be negative", ErrInvalidConfig)
	case c.Audio.CaptureCapacity < 0:
		return fmt.Errorf("%w: audio.capture_capacity must not be negative", ErrInvalidConfig)
	case c.Behavior.SilenceThreshold < 0 || c.Behavior.SilenceThreshold > 1:
		return fmt.Errorf("%w: behavior.silence_threshold must be within [0, 1]", ErrInvalidConfig)
	case c.Model.Threads < 0:
		return fmt.Errorf("%w: model.threads must not be negative", ErrInvalidConfig)
	}
	switch c.Output.TimestampFormat {
	case "", "none", "simple", "detailed":
	default:
		return fmt.Errorf("%w: output.timestamp_format %q (want none, simple or detailed)", ErrInvalidConfig, c.Output.TimestampFormat)
	}
	return nil
}

// Merge applies command-line overrides in place.
func (c *Config) Merge(o Overrides) {
	if o.Device != "" {
		c.Audio.Device = o.Device
	}
	if o.MaxDuration > 0 {
		c.Audio.MaxDuration = o.MaxDuration
	}
	if o.Model != "" {
		c.Model.DefaultModel = o.Model
	}
	if o.Quantization != "" {
		c.Model.DefaultQuantization = o.Quantization
	}
	if o.Paste {
		c.Output.EnablePaste = true
	}
	if o.TerminalPaste {
		c.Output.TerminalPaste = true
	}
	if o.NoClipboard {
		c.Output.EnableClipboard = false
	}
	if o.AppendFile != "" {
		c.Output.AppendFile = o.AppendFile
	}
	if o.TimestampFormat != "" {
		c.Output.TimestampFormat = o.TimestampFormat
	}
	if o.NotifyCommand != "" {
		c.Output.NotifyCommand = o.NotifyCommand
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
}

// ModelsDir returns the model cache directory, honouring model.cache_dir.
func (c *Config) ModelsDir() string {
	if c.Model.CacheDir != "" {
		return c.Model.CacheDir
	}
	return ModelsPath()
}
