// SPDX-License-Identifier: MIT
package config

import (
	"fmt"

	"opentune/pkg/bitint"
)

// Engine-wide limits and defaults.
const (
	DefaultSampleRate = 44100 // CD-quality audio
	DefaultBlockSize  = 512   // Balanced latency/performance
	DefaultChannels   = 2     // Stereo master
	DefaultDeviceID   = MinDeviceID
	DefaultLowLatency = false
	DefaultLogLevel   = "info"

	MinDeviceID   = -1     // -1 selects the system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MinBlockSize  = 64     // Frames per block, power of 2
	MaxBlockSize  = 2048

	// Command ring capacity; power of 2, large enough that an editing
	// burst between two blocks never overflows in practice.
	DefaultCommandQueueSize = 1024

	DefaultProjectDir     = "projects"
	DefaultMeterAddr      = ":8080" // metering/status feed
	DefaultMeterTransport = "websocket"
)

// Config holds all runtime options for the engine. Built from the YAML file
// (if present), environment overrides and command line flags, in that order.
type Config struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`

	Audio   AudioConfig   `yaml:"audio"`
	Meter   MeterConfig   `yaml:"meter"`
	Project ProjectConfig `yaml:"project"`
	Plugins PluginConfig  `yaml:"plugins"`

	// One-off CLI command ("list", "plugins", "render"); empty runs the
	// engine.
	Command string `yaml:"-"`

	// Offline render options (render command only).
	RenderSeconds float64 `yaml:"-"`
	RenderOutput  string  `yaml:"-"`

	// Record the master output while playing.
	RecordMaster bool   `yaml:"-"`
	RecordOutput string `yaml:"-"`

	ProjectID string `yaml:"-"` // project to open at startup
}

// AudioConfig holds device and processing format settings.
type AudioConfig struct {
	DeviceID   int     `yaml:"output_device"`     // PortAudio device index, -1 for default
	SampleRate float64 `yaml:"sample_rate"`       // Hz
	BlockSize  int     `yaml:"frames_per_buffer"` // frames per block, power of 2
	Channels   int     `yaml:"output_channels"`   // master channel count
	LowLatency bool    `yaml:"low_latency"`       // request low latency from the device
}

// MeterConfig holds the metering/status feed settings.
type MeterConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Transport  string `yaml:"transport"`   // "websocket", "udp" or "log"
	Addr       string `yaml:"addr"`        // listen address (websocket) or target (udp)
	IntervalMS int    `yaml:"interval_ms"` // publish interval
}

// ProjectConfig holds persistence settings.
type ProjectConfig struct {
	Dir string `yaml:"dir"` // base directory for project files
}

// PluginConfig holds plugin discovery settings.
type PluginConfig struct {
	ScanStandardPaths bool     `yaml:"scan_standard_paths"`
	ExtraPaths        []string `yaml:"extra_paths"`
}

// NewConfig returns the built-in defaults, the base layer before file, env
// and flag overrides.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			DeviceID:   DefaultDeviceID,
			SampleRate: DefaultSampleRate,
			BlockSize:  DefaultBlockSize,
			Channels:   DefaultChannels,
			LowLatency: DefaultLowLatency,
		},
		Meter: MeterConfig{
			Enabled:    false,
			Transport:  DefaultMeterTransport,
			Addr:       DefaultMeterAddr,
			IntervalMS: 33, // ~30Hz
		},
		Project: ProjectConfig{Dir: DefaultProjectDir},
		Plugins: PluginConfig{ScanStandardPaths: true},
	}
}

// Validate rejects configurations the engine cannot run with. The block
// size bound matters doubly: it is also the FFT size of analyzer nodes.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("sample rate %.0f outside [%d, %d]",
			c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.BlockSize < MinBlockSize || c.Audio.BlockSize > MaxBlockSize {
		return fmt.Errorf("block size %d outside [%d, %d]",
			c.Audio.BlockSize, MinBlockSize, MaxBlockSize)
	}
	if !bitint.IsPowerOfTwo(c.Audio.BlockSize) {
		return fmt.Errorf("block size %d is not a power of 2", c.Audio.BlockSize)
	}
	if c.Audio.Channels < 1 {
		return fmt.Errorf("need at least one output channel, got %d", c.Audio.Channels)
	}
	if c.Meter.Enabled && c.Meter.IntervalMS <= 0 {
		return fmt.Errorf("meter interval must be positive, got %dms", c.Meter.IntervalMS)
	}
	if c.Meter.Enabled {
		switch c.Meter.Transport {
		case "websocket", "udp", "log":
		default:
			return fmt.Errorf("unknown meter transport %q", c.Meter.Transport)
		}
	}
	return nil
}
