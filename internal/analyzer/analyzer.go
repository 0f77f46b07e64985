// SPDX-License-Identifier: MIT

// Package analyzer drives a spectrum engine over a stream of I/Q blocks and
// publishes averaged in-band power measurements.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"iqpower/internal/iq"
	applog "iqpower/internal/log"
	"iqpower/internal/transport"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
)

// PowerEstimator is the part of spectrum.Engine the analyzer needs.
type PowerEstimator interface {
	ComputeSpectralPower(bandwidthHz float64, samples []int8) (float64, error)
	Len() int // Transform length in I/Q pairs.
}

// Sink receives every measurement. A Sink error stops the run.
type Sink interface {
	Publish(m Measurement) error
}

// BlockRecorder receives each block before it is analyzed.
type BlockRecorder interface {
	WriteBlock(block []int8) error
}

// Options configures a run.
type Options struct {
	BandwidthHz float64
	Averages    int // Blocks per measurement; values below 1 mean 1.
	Tag         int
	Continuous  bool          // Keep measuring until the source ends.
	Recorder    BlockRecorder // Optional.
}

// Analyzer reads blocks of 2*L values from a source and averages their
// in-band power. It is not safe for concurrent use.
type Analyzer struct {
	engine PowerEstimator
	source iq.Source
	opts   Options
	sinks  []Sink
	now    func() time.Time

	block  []int8
	powers []float64

	blocks       int
	pairs        int
	measurements int
}

// New creates an Analyzer. The engine and source stay owned by the caller.
func New(engine PowerEstimator, source iq.Source, opts Options, sinks ...Sink) *Analyzer {
	if opts.Averages < 1 {
		opts.Averages = 1
	}
	return &Analyzer{
		engine: engine,
		source: source,
		opts:   opts,
		sinks:  sinks,
		now:    time.Now,
		block:  make([]int8, 2*engine.Len()),
		powers: make([]float64, 0, opts.Averages),
	}
}

// Run processes blocks until a measurement is emitted, or with Continuous set,
// until the source ends. A trailing group shorter than Averages is averaged
// over the blocks it has. The context is checked before and after every
// read; once it is done the engine and recorder are no longer used.
func (a *Analyzer) Run(ctx context.Context) error {
	applog.Infof("Analyzer: Starting (Bandwidth: %.2f Hz, Averages: %d, Continuous: %v)",
		a.opts.BandwidthHz, a.opts.Averages, a.opts.Continuous)
	defer a.logSummary()

	groupPairs := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := a.source.ReadBlock(a.block)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("analyzer: failed to read block: %w", err)
		}
		// A read can outlive cancellation, after which the caller may already
		// have closed the engine and recorder.
		if err := ctx.Err(); err != nil {
			return err
		}

		if a.opts.Recorder != nil {
			if err := a.opts.Recorder.WriteBlock(a.block[:n]); err != nil {
				return err
			}
		}

		pairs := n / 2
		if pairs == 0 {
			continue
		}

		power, err := a.engine.ComputeSpectralPower(a.opts.BandwidthHz, a.block[:n])
		if err != nil {
			return fmt.Errorf("analyzer: failed to compute power: %w", err)
		}
		a.blocks++
		a.pairs += pairs
		a.powers = append(a.powers, power)
		groupPairs += pairs

		if len(a.powers) < a.opts.Averages {
			continue
		}
		if err := a.emit(groupPairs); err != nil {
			return err
		}
		groupPairs = 0
		if !a.opts.Continuous {
			return nil
		}
	}

	if len(a.powers) > 0 {
		return a.emit(groupPairs)
	}
	if a.blocks == 0 {
		applog.Warnf("Analyzer: Input ended before a complete I/Q pair was read")
	}
	return nil
}

func (a *Analyzer) emit(pairs int) error {
	m := NewMeasurement(a.opts.Tag, stat.Mean(a.powers, nil), len(a.powers), pairs, a.opts.BandwidthHz, a.now())
	a.powers = a.powers[:0]
	a.measurements++

	applog.Debugf("Analyzer: Measurement %d: %.4f (%.2f dB) over %d blocks",
		a.measurements, m.Power, m.PowerDB, m.Blocks)
	for _, s := range a.sinks {
		if err := s.Publish(m); err != nil {
			return fmt.Errorf("analyzer: failed to publish measurement: %w", err)
		}
	}
	return nil
}

func (a *Analyzer) logSummary() {
	p := message.NewPrinter(language.English)
	applog.Infof("%s", p.Sprintf("Analyzer: Processed %d blocks (%d I/Q pairs), %d measurements",
		a.blocks, a.pairs, a.measurements))
}

// TransportSink adapts a transport to a Sink. Send errors are logged and
// never stop the run.
func TransportSink(t transport.Transport) Sink {
	return transportSink{t}
}

type transportSink struct {
	t transport.Transport
}

func (s transportSink) Publish(m Measurement) error {
	if err := s.t.Send(m); err != nil {
		applog.Warnf("Analyzer: Transport send failed: %v", err)
	}
	return nil
}
