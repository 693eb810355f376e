// Package config loads the broadcaster's runtime settings via Viper,
// grounded on ColonelBlimp-cwdecoder's Cobra+Viper pairing — the
// teacher module itself has no config-file loader, so the ambient
// config layer is adopted from elsewhere in the pack rather than
// invented from scratch.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

const (
	AppName    = "roomcast"
	ConfigType = "yaml"

	DefaultConfig = `# roomcast configuration

# Capture device
capture_device: "default"  # device name or index passed to PortAudio
device_index: -1           # -1 selects the default input device
input_file: ""             # if set, decode this WAV/FLAC/MP3 file instead of
                            # capturing live audio (offline testing, spec.md §6)

# Capture geometry
physical_channels: 3       # device channels, last one sacrificed to carry the stream marker
logical_channels: 2        # channels forwarded downstream
sample_format: "S16_LE"    # S16_LE, S24_LE, or S32_LE
sampling_rate: 44100
frames_per_chunk: 1024
periods: 4
ring_capacity: 64

# Network
slimproto_port: 3483
http_port: 9000
discovery_port: 3483

# Output encoding
encoder_format: "flac"     # wave or flac
flac_compression_level: 5
record_path: ""            # if set, also write the broadcast to this file
                            # (offline file output, spec.md §6), encoded the
                            # same as encoder_format

# Identity
product_name: "roomcast"
product_version: "dev"

log_level: "info"
`
)

// Config holds every setting a broadcaster process needs to assemble
// its pipeline and network listeners.
type Config struct {
	CaptureDevice string `mapstructure:"capture_device"`
	DeviceIndex   int    `mapstructure:"device_index"`
	InputFile     string `mapstructure:"input_file"`

	PhysicalChannels int    `mapstructure:"physical_channels"`
	LogicalChannels  int    `mapstructure:"logical_channels"`
	SampleFormat     string `mapstructure:"sample_format"`
	SamplingRate     int    `mapstructure:"sampling_rate"`
	FramesPerChunk   int    `mapstructure:"frames_per_chunk"`
	Periods          int    `mapstructure:"periods"`
	RingCapacity     int    `mapstructure:"ring_capacity"`

	SlimprotoPort int `mapstructure:"slimproto_port"`
	HTTPPort      int `mapstructure:"http_port"`
	DiscoveryPort int `mapstructure:"discovery_port"`

	EncoderFormat        string `mapstructure:"encoder_format"`
	FlacCompressionLevel int    `mapstructure:"flac_compression_level"`
	RecordPath           string `mapstructure:"record_path"`

	ProductName    string `mapstructure:"product_name"`
	ProductVersion string `mapstructure:"product_version"`

	LogLevel string `mapstructure:"log_level"`
}

// Init seeds Viper's defaults and reads an optional config file from the
// current directory. A missing config file is not an error: defaults
// (plus any CLI flags bound over them) stand alone.
func Init(cfgFile string) error {
	viper.SetDefault("capture_device", "default")
	viper.SetDefault("device_index", -1)
	viper.SetDefault("input_file", "")
	viper.SetDefault("physical_channels", 3)
	viper.SetDefault("logical_channels", 2)
	viper.SetDefault("sample_format", "S16_LE")
	viper.SetDefault("sampling_rate", 44100)
	viper.SetDefault("frames_per_chunk", 1024)
	viper.SetDefault("periods", 4)
	viper.SetDefault("ring_capacity", 64)
	viper.SetDefault("slimproto_port", 3483)
	viper.SetDefault("http_port", 9000)
	viper.SetDefault("discovery_port", 3483)
	viper.SetDefault("encoder_format", "flac")
	viper.SetDefault("flac_compression_level", 5)
	viper.SetDefault("record_path", "")
	viper.SetDefault("product_name", AppName)
	viper.SetDefault("product_version", "dev")
	viper.SetDefault("log_level", "info")

	viper.SetConfigType(ConfigType)
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: read: %w", err)
		}
	}

	return nil
}

// Get unmarshals and validates the currently loaded configuration.
func Get() (*Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &c, nil
}

// Validate checks the invariants the capture and network layers rely
// on: the channel-geometry invariant from spec.md §3 and sane port/
// format values.
func (c *Config) Validate() error {
	var errs []error

	if c.PhysicalChannels < c.LogicalChannels+1 {
		errs = append(errs, fmt.Errorf("physical_channels (%d) must be >= logical_channels+1 (%d)", c.PhysicalChannels, c.LogicalChannels+1))
	}
	if c.SamplingRate <= 0 {
		errs = append(errs, fmt.Errorf("sampling_rate must be positive, got %d", c.SamplingRate))
	}
	if c.FramesPerChunk <= 0 {
		errs = append(errs, fmt.Errorf("frames_per_chunk must be positive, got %d", c.FramesPerChunk))
	}
	if c.RingCapacity <= 0 {
		errs = append(errs, fmt.Errorf("ring_capacity must be positive, got %d", c.RingCapacity))
	}

	switch c.SampleFormat {
	case "S16_LE", "S24_LE", "S32_LE":
	default:
		errs = append(errs, fmt.Errorf("sample_format must be one of S16_LE, S24_LE, S32_LE, got %q", c.SampleFormat))
	}

	switch c.EncoderFormat {
	case "wave", "flac":
	default:
		errs = append(errs, fmt.Errorf("encoder_format must be wave or flac, got %q", c.EncoderFormat))
	}

	for _, port := range []struct {
		name string
		val  int
	}{
		{"slimproto_port", c.SlimprotoPort},
		{"http_port", c.HTTPPort},
		{"discovery_port", c.DiscoveryPort},
	} {
		if port.val < 1 || port.val > 65535 {
			errs = append(errs, fmt.Errorf("%s must be a valid TCP/UDP port, got %d", port.name, port.val))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
