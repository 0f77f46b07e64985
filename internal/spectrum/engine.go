// SPDX-License-Identifier: MIT

/*
Package spectrum estimates the power contained in a band centered on the
tuned frequency of a block of 8-bit interleaved I/Q samples.

Each call windows one block of TransformLength complex samples, runs a
forward DFT, converts every bin to |X|^2/L, stores the result with the DC
bin moved to index L/2 and sums the bins that fall inside the requested
bandwidth.

An Engine owns its transform workspace and power buffer and mutates them on
every call, so a single Engine must only be used from one goroutine at a
time. Separate engines are fully independent.
*/
package spectrum

import (
	"errors"
	"fmt"
	"math"

	"iqpower/internal/fft"
	applog "iqpower/internal/log"

	"gonum.org/v1/gonum/floats"
)

const (
	// TransformLength is the number of complex samples per block (L).
	TransformLength = 8192

	// DefaultSampleRate replaces unusable sample rates, in S/s.
	DefaultSampleRate = 256000

	// MinSampleRate is the lowest accepted sample rate, in S/s. Anything
	// smaller would leave the bin resolution at or near zero.
	MinSampleRate = 1
)

var (
	// ErrInvalidInput is returned for blocks longer than TransformLength pairs
	// and for wrongly sized destination buffers.
	ErrInvalidInput = errors.New("spectrum: invalid input")
	// ErrClosed is returned by compute calls after Close.
	ErrClosed = errors.New("spectrum: engine is closed")
)

type options struct {
	backend fft.Backend
	window  WindowFunc
}

// Option customises engine construction.
type Option func(*options)

// WithBackend selects the DFT implementation. Defaults to fft.Gonum.
func WithBackend(b fft.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithWindow selects the block window. Defaults to Hann.
func WithWindow(w WindowFunc) Option {
	return func(o *options) { o.window = w }
}

// workspace holds the buffers the transform reads and writes.
type workspace struct {
	input  []complex128 // Windowed block, zero beyond the last pair.
	output []complex128 // Raw (uncentered) transform output.
}

// Engine is a spectral power estimator for a fixed transform length.
type Engine struct {
	sampleRate float64 // S/s, always positive.
	resolution float64 // Hz per bin.
	windowFunc WindowFunc
	backend    fft.Backend

	window    []float64 // Per-sample weights.
	shift     []int     // Raw bin -> centered bin.
	transform fft.Transform
	workspace workspace
	power     []float64 // Centered power spectrum.
}

// NewEngine builds an engine for the given sample rate. A sample rate that
// is not a finite number of at least MinSampleRate is replaced by
// DefaultSampleRate. The window table, shift table and transform plan are
// built once here and reused for every block.
func NewEngine(sampleRate float64, opts ...Option) (*Engine, error) {
	o := options{backend: fft.Gonum, window: Hann}
	for _, opt := range opts {
		opt(&o)
	}

	if !(sampleRate >= MinSampleRate) || math.IsInf(sampleRate, 0) {
		applog.Warnf("Spectrum: Invalid sample rate %v, using %d S/s", sampleRate, DefaultSampleRate)
		sampleRate = DefaultSampleRate
	}

	transform, err := fft.New(o.backend, TransformLength)
	if err != nil {
		return nil, fmt.Errorf("spectrum: failed to create transform: %w", err)
	}

	e := &Engine{
		sampleRate: sampleRate,
		resolution: sampleRate / TransformLength,
		windowFunc: o.window,
		backend:    o.backend,
		window:     newWindowTable(TransformLength, o.window),
		shift:      newShiftTable(TransformLength),
		transform:  transform,
		workspace: workspace{
			input:  make([]complex128, TransformLength),
			output: make([]complex128, TransformLength),
		},
		power: make([]float64, TransformLength),
	}

	applog.Infof("Spectrum: Initializing engine (Size: %d, SampleRate: %.1f S/s, Resolution: %.4f Hz, Window: %s, Backend: %s)",
		TransformLength, e.sampleRate, e.resolution, e.windowFunc, e.backend)

	return e, nil
}

// BuildPowerSpectrum fills the centered power spectrum from samples, which
// holds interleaved I/Q values. It returns the number of I/Q pairs
// processed. A trailing unpaired value is ignored. Positions past the last
// pair are zero-filled, so short blocks do not depend on earlier calls.
// More than TransformLength pairs is rejected with ErrInvalidInput.
func (e *Engine) BuildPowerSpectrum(samples []int8) (int, error) {
	if e.transform == nil {
		return 0, ErrClosed
	}

	pairs := len(samples) / 2
	if pairs > TransformLength {
		return 0, fmt.Errorf("%w: %d I/Q pairs exceed transform length %d", ErrInvalidInput, pairs, TransformLength)
	}

	in := e.workspace.input
	for k := range pairs {
		w := e.window[k]
		in[k] = complex(float64(samples[2*k])*w, float64(samples[2*k+1])*w)
	}
	clear(in[pairs:])

	if err := e.transform.Forward(e.workspace.output, in); err != nil {
		return 0, fmt.Errorf("spectrum: transform failed: %w", err)
	}

	const scale = 1.0 / TransformLength
	for i, c := range e.workspace.output {
		re, im := real(c), imag(c)
		e.power[e.shift[i]] = (re*re + im*im) * scale
	}

	return pairs, nil
}

// BinRange returns the inclusive centered-bin range covered by a one-sided
// bandwidth. Bandwidths above the Nyquist limit are clamped to it; negative
// or NaN bandwidths select only the center bin.
func (e *Engine) BinRange(bandwidthHz float64) (lower, upper int) {
	nyquist := e.sampleRate / 2
	if bandwidthHz > nyquist {
		bandwidthHz = nyquist
	}
	if !(bandwidthHz > 0) {
		bandwidthHz = 0
	}

	// A zero resolution turns the quotient into NaN or +Inf.
	bins := math.Floor(bandwidthHz / e.resolution)
	if !(bins >= 0) {
		bins = 0
	}
	span := int(min(bins, TransformLength/2))
	center := TransformLength / 2

	lower = max(center-span, 0)
	upper = min(center+span, TransformLength-1)
	return lower, upper
}

// ComputeSpectralPower returns the linear power within +/- bandwidthHz of
// the center frequency for one block of interleaved I/Q samples.
func (e *Engine) ComputeSpectralPower(bandwidthHz float64, samples []int8) (float64, error) {
	lower, upper := e.BinRange(bandwidthHz)

	if _, err := e.BuildPowerSpectrum(samples); err != nil {
		return 0, err
	}

	return floats.Sum(e.power[lower : upper+1]), nil
}

// SampleRate returns the effective sample rate in S/s.
func (e *Engine) SampleRate() float64 {
	return e.sampleRate
}

// Resolution returns the width of one bin in Hz.
func (e *Engine) Resolution() float64 {
	return e.resolution
}

// Len returns the transform length.
func (e *Engine) Len() int {
	return TransformLength
}

// PowerSpectrum returns a copy of the centered power spectrum from the last
// call.
func (e *Engine) PowerSpectrum() []float64 {
	out := make([]float64, len(e.power))
	copy(out, e.power)
	return out
}

// PowerSpectrumInto copies the centered power spectrum into dst without
// allocating. dst must have length TransformLength.
func (e *Engine) PowerSpectrumInto(dst []float64) error {
	if len(dst) != len(e.power) {
		return fmt.Errorf("%w: destination length %d does not match required length %d", ErrInvalidInput, len(dst), len(e.power))
	}
	copy(dst, e.power)
	return nil
}

// FrequencyForBin returns the offset from the center frequency, in Hz, of a
// centered bin index. Out of range indices return 0.
func (e *Engine) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= TransformLength {
		return 0
	}
	return float64(binIndex-TransformLength/2) * e.resolution
}

// Close releases the transform workspace. Further compute calls return
// ErrClosed.
func (e *Engine) Close() error {
	if e.transform == nil {
		return nil
	}
	applog.Debugf("Spectrum: Releasing engine workspace (Backend: %s)", e.backend)
	e.transform = nil
	e.workspace = workspace{}
	return nil
}
