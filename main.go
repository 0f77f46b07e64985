// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"iqpower/cmd"
	"iqpower/internal/analyzer"
	"iqpower/internal/audio"
	"iqpower/internal/config"
	"iqpower/internal/fft"
	"iqpower/internal/iq"
	applog "iqpower/internal/log"
	"iqpower/internal/report"
	"iqpower/internal/spectrum"
	"iqpower/internal/transport"
	"iqpower/internal/transport/udp"
	"iqpower/pkg/build"
)

// shutdownGrace bounds how long shutdown waits for a read that cannot be
// interrupted, such as a blocked read on standard input.
const shutdownGrace = 500 * time.Millisecond

// main is the entry point for the I/Q power analyzer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//   - Open the sample source, engine, recorder and transports
//
// 2. Processing Phase (Hot Path):
//   - Read blocks, compute in-band power, publish measurements
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Finalize the recording
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if cfg == nil {
		return // Help or version was printed.
	}
	configureLogging(cfg)
	applog.Debugf("Build: %s", build.GetBuildFlags())

	if cfg.Command != "" {
		if err := executeCommand(cfg.Command, os.Stdout); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		applog.Fatalf("%v", err)
	}
}

func configureLogging(cfg *config.Config) {
	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}
}

// executeCommand handles one-off commands that don't need a sample source.
func executeCommand(command string, w io.Writer) error {
	switch command {
	case cmd.CommandBackends:
		for _, b := range fft.Backends() {
			fmt.Fprintln(w, b)
		}
		return nil
	case cmd.CommandDevices:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(w)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Validated by the config layer.
	backend, _ := fft.ParseBackend(cfg.Analysis.FFTBackend)
	window, _ := spectrum.ParseWindowFunc(cfg.Analysis.FFTWindow)

	var closers []func() error
	defer func() {
		// Reverse order: recorder and transports before the source.
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				applog.Warnf("Shutdown: %v", err)
			}
		}
	}()

	source, sampleRate, err := openSource(cfg, &closers)
	if err != nil {
		return err
	}
	closeSource := sync.OnceValue(source.Close)
	closers = append(closers, closeSource)

	engine, err := spectrum.NewEngine(sampleRate, spectrum.WithBackend(backend), spectrum.WithWindow(window))
	if err != nil {
		return err
	}
	closers = append(closers, engine.Close)

	opts := analyzer.Options{
		BandwidthHz: cfg.Analysis.BandwidthHz,
		Averages:    cfg.Analysis.Averages,
		Tag:         cfg.Analysis.Tag,
		Continuous:  cfg.Analysis.Continuous,
	}

	if cfg.Recording.Enabled {
		rec, err := iq.NewWAVRecorder(cfg.Recording.OutputFile, engine.SampleRate())
		if err != nil {
			return err
		}
		closers = append(closers, func() error {
			if err := rec.Close(); err != nil {
				return err
			}
			applog.Infof("Recording: Saved %d I/Q pairs to %s", rec.Values()/2, cfg.Recording.OutputFile)
			return nil
		})
		opts.Recorder = rec
	}

	sinks := []analyzer.Sink{report.NewWriter(os.Stdout)}
	transports, err := openTransports(cfg)
	for _, t := range transports {
		closers = append(closers, t.Close)
		sinks = append(sinks, analyzer.TransportSink(t))
	}
	if err != nil {
		return err
	}

	// ==================== PROCESSING PHASE (Hot Path) ====================

	a := analyzer.New(engine, source, opts, sinks...)
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	select {
	case err = <-errc:
	case <-ctx.Done():
		// ==================== SHUTDOWN PHASE (Cold Path) ====================
		applog.Infof("Shutdown: Signal received, stopping")
		if err := closeSource(); err != nil {
			applog.Debugf("Shutdown: closing source: %v", err)
		}
		select {
		case err = <-errc:
		case <-time.After(shutdownGrace):
			// The analyzer goroutine is parked in a read it cannot leave. It
			// re-checks ctx when the read returns, so the closers below never
			// race with it on the engine or recorder.
			applog.Warnf("Shutdown: Input read still blocked, abandoning it")
			err = ctx.Err()
		}
	}
	return err
}

// openSource returns the configured source and the sample rate to analyze at.
// A WAV header overrides the configured rate.
func openSource(cfg *config.Config, closers *[]func() error) (iq.Source, float64, error) {
	rate := cfg.Analysis.SampleRate

	switch cfg.Input.Format {
	case config.FormatWAV:
		src, err := iq.OpenWAV(cfg.Input.Path)
		if err != nil {
			return nil, 0, err
		}
		if src.SampleRate() != rate {
			applog.Infof("Input: Using sample rate %.0f S/s from '%s'", src.SampleRate(), cfg.Input.Path)
		}
		return src, src.SampleRate(), nil

	case config.FormatDevice:
		if err := audio.Initialize(); err != nil {
			return nil, 0, err
		}
		*closers = append(*closers, audio.Terminate)
		src, err := audio.OpenDeviceSource(cfg.Input.Device, rate, cfg.Input.FramesPerBuffer)
		if err != nil {
			return nil, 0, err
		}
		return src, rate, nil

	default:
		src, err := iq.OpenRaw(cfg.Input.Path, cfg.Input.Unsigned)
		if err != nil {
			return nil, 0, err
		}
		applog.Debugf("Input: Reading raw I/Q from '%s' (Unsigned: %v)", displayPath(cfg.Input.Path), cfg.Input.Unsigned)
		return src, rate, nil
	}
}

// openTransports returns every transport that was opened, even on error, so
// the caller can close them.
func openTransports(cfg *config.Config) ([]transport.Transport, error) {
	var out []transport.Transport

	if cfg.Debug {
		out = append(out, transport.NewLoggingTransport())
	}
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return out, err
		}
		pub, err := udp.NewPublisher(sender)
		if err != nil {
			sender.Close()
			return out, err
		}
		out = append(out, pub)
	}
	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err != nil {
			return out, err
		}
		out = append(out, ws)
	}
	return out, nil
}

func displayPath(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}
