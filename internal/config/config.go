// SPDX-License-Identifier: MIT

// Package config holds the runtime configuration of the analyzer, loaded from
// YAML with environment and command line overrides.
package config

// Defaults and limits applied when a setting is absent.
const (
	DefaultLogLevel         = "info"
	DefaultSampleRate       = 256000 // Matches spectrum.DefaultSampleRate.
	DefaultBandwidthHz      = 1000
	DefaultAverages         = 1
	DefaultFFTBackend       = "gonum"
	DefaultFFTWindow        = "hann"
	DefaultInputPath        = "-" // Standard input.
	DefaultInputFormat      = FormatRaw
	DefaultDeviceID         = -1 // System default input device.
	DefaultFramesPerBuffer  = 1024
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultWebSocketAddress = ":8080"

	MaxFramesPerBuffer = 8192
)

// Input formats.
const (
	FormatRaw    = "raw"
	FormatWAV    = "wav"
	FormatDevice = "device"
)

// Config represents the main application configuration structure.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Forces debug logging.
	LogLevel  string          `yaml:"log_level"`         // "debug", "info", "warn" or "error".
	Command   string          `yaml:"command,omitempty"` // One-off command to run instead of the analyzer.
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Input     InputConfig     `yaml:"input"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AnalysisConfig holds the spectral power measurement settings.
type AnalysisConfig struct {
	SampleRate  float64 `yaml:"sample_rate"`  // Input sample rate in S/s.
	BandwidthHz float64 `yaml:"bandwidth_hz"` // One-sided bandwidth around the center frequency.
	Averages    int     `yaml:"averages"`     // Blocks averaged per measurement.
	Tag         int     `yaml:"tag"`          // Caller supplied label echoed in every measurement.
	Continuous  bool    `yaml:"continuous"`   // Keep measuring until the input ends.
	FFTBackend  string  `yaml:"fft_backend"`  // "gonum", "algofft" or "godsp".
	FFTWindow   string  `yaml:"fft_window"`   // Window function name, e.g. "hann".
}

// InputConfig selects where samples come from.
type InputConfig struct {
	Path            string `yaml:"path"`              // File path, "-" for stdin.
	Format          string `yaml:"format"`            // "raw", "wav" or "device".
	Unsigned        bool   `yaml:"unsigned"`          // Raw bytes are offset binary.
	Device          int    `yaml:"device"`            // PortAudio device index, -1 for default.
	FramesPerBuffer int    `yaml:"frames_per_buffer"` // PortAudio frames per read.
}

// RecordingConfig controls copying of consumed samples to a WAV file.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // Generated from the start time when empty.
}

// TransportConfig holds settings related to sending measurements over the network.
type TransportConfig struct {
	UDPEnabled       bool   `yaml:"udp_enabled"`
	UDPTargetAddress string `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketAddress string `yaml:"websocket_address"` // Listen address, e.g. ":8080".
}

// NewConfig returns a Config populated with built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Analysis: AnalysisConfig{
			SampleRate:  DefaultSampleRate,
			BandwidthHz: DefaultBandwidthHz,
			Averages:    DefaultAverages,
			FFTBackend:  DefaultFFTBackend,
			FFTWindow:   DefaultFFTWindow,
		},
		Input: InputConfig{
			Path:            DefaultInputPath,
			Format:          DefaultInputFormat,
			Device:          DefaultDeviceID,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			WebSocketAddress: DefaultWebSocketAddress,
		},
	}
}
