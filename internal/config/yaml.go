// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"iqpower/internal/fft"
	applog "iqpower/internal/log"
	"iqpower/internal/spectrum"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "config.yaml"

// LoadConfig loads configuration from a YAML file specified by path. If path is
// empty, it looks for DefaultConfigFile. If no file is found, it uses built-in
// defaults. Environment overrides are applied last and the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment wins over the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to build the analyzer.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}
	if c.Analysis.Averages < 1 {
		errs = append(errs, fmt.Errorf("analysis.averages must be at least 1, got %d", c.Analysis.Averages))
	}
	if math.IsNaN(c.Analysis.BandwidthHz) {
		errs = append(errs, errors.New("analysis.bandwidth_hz is not a number"))
	}
	if _, err := fft.ParseBackend(c.Analysis.FFTBackend); err != nil {
		errs = append(errs, fmt.Errorf("analysis.fft_backend: %w", err))
	}
	if _, err := spectrum.ParseWindowFunc(c.Analysis.FFTWindow); err != nil {
		errs = append(errs, fmt.Errorf("analysis.fft_window: %w", err))
	}

	switch c.Input.Format {
	case FormatRaw, FormatWAV:
	case FormatDevice:
		if c.Input.FramesPerBuffer <= 0 || c.Input.FramesPerBuffer > MaxFramesPerBuffer {
			errs = append(errs, fmt.Errorf("input.frames_per_buffer must be in 1..%d, got %d",
				MaxFramesPerBuffer, c.Input.FramesPerBuffer))
		}
	default:
		errs = append(errs, fmt.Errorf("input.format must be %q, %q or %q, got %q",
			FormatRaw, FormatWAV, FormatDevice, c.Input.Format))
	}

	if c.Transport.UDPEnabled && c.Transport.UDPTargetAddress == "" {
		errs = append(errs, errors.New("transport.udp_target_address must be set when UDP is enabled"))
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		errs = append(errs, errors.New("transport.websocket_address must be set when WebSocket is enabled"))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides copies ENV_* variables over the loaded values. Unparsable
// values are ignored.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Debugf("Config: Overriding debug from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("Config: Overriding log_level from env: %s", val)
	}

	// ENV_ANALYSIS_{...}
	if val, ok := os.LookupEnv("ENV_ANALYSIS_SAMPLE_RATE"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			c.Analysis.SampleRate = fVal
			applog.Debugf("Config: Overriding analysis.sample_rate from env: %g", fVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_ANALYSIS_BANDWIDTH_HZ"); ok {
		if fVal, err := strconv.ParseFloat(val, 64); err == nil {
			c.Analysis.BandwidthHz = fVal
			applog.Debugf("Config: Overriding analysis.bandwidth_hz from env: %g", fVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_ANALYSIS_AVERAGES"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Analysis.Averages = iVal
			applog.Debugf("Config: Overriding analysis.averages from env: %d", iVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_ANALYSIS_TAG"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			c.Analysis.Tag = iVal
			applog.Debugf("Config: Overriding analysis.tag from env: %d", iVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_ANALYSIS_CONTINUOUS"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Analysis.Continuous = bVal
			applog.Debugf("Config: Overriding analysis.continuous from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_ANALYSIS_FFT_BACKEND"); ok {
		c.Analysis.FFTBackend = val
		applog.Debugf("Config: Overriding analysis.fft_backend from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_ANALYSIS_FFT_WINDOW"); ok {
		c.Analysis.FFTWindow = val
		applog.Debugf("Config: Overriding analysis.fft_window from env: %s", val)
	}

	// ENV_UDP_{...} and ENV_WS_{...}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Debugf("Config: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Debugf("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			applog.Debugf("Config: Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Debugf("Config: Overriding transport.websocket_address from env: %s", val)
	}
}
