// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Analysis.SampleRate != DefaultSampleRate || cfg.Analysis.Averages != DefaultAverages {
		t.Errorf("expected defaults, got %+v", cfg.Analysis)
	}
	if cfg.Input.Path != "-" || cfg.Input.Format != FormatRaw {
		t.Errorf("expected stdin raw input, got %+v", cfg.Input)
	}
}

func TestLoadConfig_DiscoversDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("analysis:\n  tag: 42\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.Tag != 42 {
		t.Errorf("Tag = %d, want 42", cfg.Analysis.Tag)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
analysis:
  sample_rate: 2048000
  bandwidth_hz: 12500
  averages: 8
  fft_backend: algofft
  fft_window: blackman
input:
  path: capture.wav
  format: wav
transport:
  udp_enabled: true
  udp_target_address: 10.0.0.2:7000
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	a := cfg.Analysis
	if a.SampleRate != 2048000 || a.BandwidthHz != 12500 || a.Averages != 8 ||
		a.FFTBackend != "algofft" || a.FFTWindow != "blackman" {
		t.Errorf("analysis = %+v", a)
	}
	if cfg.Input.Path != "capture.wav" || cfg.Input.Format != FormatWAV {
		t.Errorf("input = %+v", cfg.Input)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Input.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("FramesPerBuffer = %d, want default", cfg.Input.FramesPerBuffer)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "analysis:\n  bandwidth_hz: 500\n")
	t.Setenv("ENV_ANALYSIS_BANDWIDTH_HZ", "2500")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_WS_ADDRESS", ":9999")
	t.Setenv("ENV_DEBUG", "not-a-bool")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Analysis.BandwidthHz != 2500 {
		t.Errorf("BandwidthHz = %v, want 2500", cfg.Analysis.BandwidthHz)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.WebSocketAddress != ":9999" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Debug {
		t.Error("unparsable ENV_DEBUG must be ignored")
	}
}

func TestLoadConfig_AnalysisEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "analysis:\n  averages: 2\n  tag: 1\n  fft_window: hamming\n")
	t.Setenv("ENV_ANALYSIS_AVERAGES", "8")
	t.Setenv("ENV_ANALYSIS_TAG", "-3")
	t.Setenv("ENV_ANALYSIS_CONTINUOUS", "true")
	t.Setenv("ENV_ANALYSIS_FFT_BACKEND", "godsp")
	t.Setenv("ENV_ANALYSIS_FFT_WINDOW", "nuttall")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	a := cfg.Analysis
	if a.Averages != 8 || a.Tag != -3 || !a.Continuous || a.FFTBackend != "godsp" || a.FFTWindow != "nuttall" {
		t.Errorf("analysis = %+v", a)
	}
}

func TestLoadConfig_EnvOverrideInvalidated(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV_ANALYSIS_AVERAGES", "0")

	if _, err := LoadConfig(""); err == nil || !strings.Contains(err.Error(), "analysis.averages") {
		t.Errorf("expected averages validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"Zero Averages", func(c *Config) { c.Analysis.Averages = 0 }, "analysis.averages"},
		{"Unknown Backend", func(c *Config) { c.Analysis.FFTBackend = "fftw" }, "analysis.fft_backend"},
		{"Unknown Window", func(c *Config) { c.Analysis.FFTWindow = "kaiser" }, "analysis.fft_window"},
		{"Unknown Format", func(c *Config) { c.Input.Format = "flac" }, "input.format"},
		{"Unknown Level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"Device Buffer", func(c *Config) {
			c.Input.Format = FormatDevice
			c.Input.FramesPerBuffer = 0
		}, "frames_per_buffer"},
		{"UDP Without Address", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = ""
		}, "udp_target_address"},
		{"WebSocket Without Address", func(c *Config) {
			c.Transport.WebSocketEnabled = true
			c.Transport.WebSocketAddress = ""
		}, "websocket_address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
