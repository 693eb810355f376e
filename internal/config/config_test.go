package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper() {
	viper.Reset()
}

func TestInitAndGetDefaults(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	require.NoError(t, Init(""))

	c, err := Get()
	require.NoError(t, err)

	assert.Equal(t, 44100, c.SamplingRate)
	assert.Equal(t, 3, c.PhysicalChannels)
	assert.Equal(t, 2, c.LogicalChannels)
	assert.Equal(t, "S16_LE", c.SampleFormat)
	assert.Equal(t, "flac", c.EncoderFormat)
	assert.Equal(t, 3483, c.SlimprotoPort)
}

func TestValidateRejectsBadChannelGeometry(t *testing.T) {
	c := &Config{
		PhysicalChannels: 1, LogicalChannels: 2,
		SamplingRate: 44100, FramesPerChunk: 1024, RingCapacity: 8,
		SampleFormat: "S16_LE", EncoderFormat: "flac",
		SlimprotoPort: 3483, HTTPPort: 9000, DiscoveryPort: 3483,
	}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownFormats(t *testing.T) {
	c := &Config{
		PhysicalChannels: 3, LogicalChannels: 2,
		SamplingRate: 44100, FramesPerChunk: 1024, RingCapacity: 8,
		SampleFormat: "S16_LE", EncoderFormat: "flac",
		SlimprotoPort: 3483, HTTPPort: 9000, DiscoveryPort: 3483,
	}
	require.NoError(t, c.Validate())

	c.SampleFormat = "float32"
	assert.Error(t, c.Validate())

	c.SampleFormat = "S16_LE"
	c.EncoderFormat = "opus"
	assert.Error(t, c.Validate())
}

func TestValidateRejectsBadPorts(t *testing.T) {
	c := &Config{
		PhysicalChannels: 3, LogicalChannels: 2,
		SamplingRate: 44100, FramesPerChunk: 1024, RingCapacity: 8,
		SampleFormat: "S16_LE", EncoderFormat: "flac",
		SlimprotoPort: 0, HTTPPort: 9000, DiscoveryPort: 3483,
	}
	assert.Error(t, c.Validate())
}
