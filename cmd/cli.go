// SPDX-License-Identifier: MIT

// Package cmd builds the runtime configuration from the command line.
package cmd

import (
	"path/filepath"
	"strings"
	"time"

	"iqpower/internal/config"
	"iqpower/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands that run instead of the analyzer.
const (
	CommandDevices  = "devices"
	CommandBackends = "backends"
)

// flagValues mirrors the command line before it is merged into the config.
type flagValues struct {
	configPath      string
	tag             int
	averages        int
	sampleRate      float64
	bandwidth       float64
	unsigned        bool
	input           string
	format          string
	device          int
	framesPerBuffer int
	backend         string
	window          string
	continuous      bool
	record          string
	udp             string
	ws              string
	verbose         bool
}

// ParseArgs parses args (without the program name). The config file is loaded
// first and flags given on the command line override it. A nil config with a
// nil error means help or version output was requested.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		fv      flagValues
		options *config.Config
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name + " [flags] < samples",
		Short:         buildInfo.Description,
		Long:          buildInfo.Description + ".\n\nReads interleaved 8-bit I/Q and prints: tag    power    power(dB)",
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(fv.configPath)
			if err != nil {
				return err
			}
			applyFlags(cfg, cmd.Flags(), &fv)
			if err := cfg.Validate(); err != nil {
				return err
			}
			options = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandDevices,
		Short: "List audio input devices usable as I/Q sources",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandDevices
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandBackends,
		Short: "List available FFT backends",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandBackends
		},
	})

	flags := rootCmd.PersistentFlags()

	// Measurement
	flags.IntVarP(&fv.tag, "tag", "t", 0,
		"Tag echoed as the first column of every measurement")
	flags.IntVarP(&fv.averages, "averages", "n", config.DefaultAverages,
		"Number of blocks averaged per measurement")
	flags.Float64VarP(&fv.sampleRate, "sample-rate", "r", config.DefaultSampleRate,
		"Sample rate, measured in samples per second")
	flags.Float64VarP(&fv.bandwidth, "bandwidth", "B", config.DefaultBandwidthHz,
		"One-sided bandwidth around the center frequency, in Hz")
	flags.BoolVar(&fv.continuous, "continuous", false,
		"Keep measuring until the input ends instead of stopping after one measurement")
	flags.StringVar(&fv.backend, "backend", config.DefaultFFTBackend,
		"FFT backend. Use 'backends' command to see available backends.")
	flags.StringVar(&fv.window, "window", config.DefaultFFTWindow,
		"Window function (hann, hamming, blackman, blackmannuttall, nuttall, rectangular)")

	// Input
	flags.StringVarP(&fv.input, "input", "i", config.DefaultInputPath,
		"Input file, '-' for standard input")
	flags.StringVarP(&fv.format, "format", "f", config.DefaultInputFormat,
		"Input format: raw, wav or device")
	flags.BoolVarP(&fv.unsigned, "unsigned", "U", false,
		"Raw samples are unsigned (offset binary)")
	flags.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Input device ID for the device format. Use 'devices' command to see available devices.")
	flags.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Frames per device read (affects latency)")

	// Outputs
	flags.StringVar(&fv.record, "record", "",
		"Record consumed samples to this WAV file")
	flags.StringVar(&fv.udp, "udp", "",
		"Send measurements as UDP packets to host:port")
	flags.StringVar(&fv.ws, "ws", "",
		"Serve measurements over WebSocket on this address")

	// General
	flags.StringVarP(&fv.configPath, "config", "c", "",
		"Config file (default ./"+config.DefaultConfigFile+" when present)")
	flags.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// applyFlags copies every flag given on the command line into cfg.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet, fv *flagValues) {
	changed := flags.Changed

	if changed("tag") {
		cfg.Analysis.Tag = fv.tag
	}
	if changed("averages") {
		cfg.Analysis.Averages = fv.averages
	}
	if changed("sample-rate") {
		cfg.Analysis.SampleRate = fv.sampleRate
	}
	if changed("bandwidth") {
		cfg.Analysis.BandwidthHz = fv.bandwidth
	}
	if changed("continuous") {
		cfg.Analysis.Continuous = fv.continuous
	}
	if changed("backend") {
		cfg.Analysis.FFTBackend = fv.backend
	}
	if changed("window") {
		cfg.Analysis.FFTWindow = fv.window
	}

	if changed("input") {
		cfg.Input.Path = fv.input
		if !changed("format") && strings.EqualFold(filepath.Ext(fv.input), ".wav") {
			cfg.Input.Format = config.FormatWAV
		}
	}
	if changed("format") {
		cfg.Input.Format = strings.ToLower(fv.format)
	}
	if changed("unsigned") {
		cfg.Input.Unsigned = fv.unsigned
	}
	if changed("device") {
		cfg.Input.Device = fv.device
	}
	if changed("frames-per-buffer") {
		cfg.Input.FramesPerBuffer = fv.framesPerBuffer
	}

	if changed("record") {
		cfg.Recording.Enabled = fv.record != ""
		cfg.Recording.OutputFile = fv.record
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = fv.udp != ""
		cfg.Transport.UDPTargetAddress = fv.udp
	}
	if changed("ws") {
		cfg.Transport.WebSocketEnabled = fv.ws != ""
		cfg.Transport.WebSocketAddress = fv.ws
	}

	if changed("verbose") && fv.verbose {
		cfg.Debug = true
	}

	if cfg.Recording.Enabled && cfg.Recording.OutputFile == "" {
		cfg.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}
}
