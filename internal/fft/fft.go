// SPDX-License-Identifier: MIT

// Package fft hides the forward complex DFT behind a small interface so the
// spectrum engine can run on any library that provides one. A Transform is
// built once for a fixed length and reused for every block.
package fft

import (
	"errors"
	"fmt"
	"strings"

	algofft "github.com/MeKo-Christian/algo-fft"
	godsp "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend selects the library used to compute the transform.
type Backend int

const (
	Gonum Backend = iota
	AlgoFFT
	GoDSP
)

var (
	// ErrLength is returned by Forward when a buffer is not Len() long.
	ErrLength = errors.New("fft: buffer length does not match transform length")
	// ErrUnknownBackend is returned for backend names or values with no implementation.
	ErrUnknownBackend = errors.New("fft: unknown backend")
)

// Transform computes the unnormalized forward DFT of a fixed length,
// X[k] = sum_n x[n] * exp(-2*pi*i*k*n/N).
type Transform interface {
	Len() int
	// Forward writes the transform of src into dst. Both slices must have
	// length Len() and must not overlap.
	Forward(dst, src []complex128) error
}

// Backends lists every available backend in declaration order.
func Backends() []Backend {
	return []Backend{Gonum, AlgoFFT, GoDSP}
}

// String returns the configuration name of the backend.
func (b Backend) String() string {
	switch b {
	case Gonum:
		return "gonum"
	case AlgoFFT:
		return "algofft"
	case GoDSP:
		return "godsp"
	default:
		return "unknown"
	}
}

// ParseBackend converts a case-insensitive name to a Backend. Unknown names
// return Gonum together with an error.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gonum":
		return Gonum, nil
	case "algofft", "algo-fft":
		return AlgoFFT, nil
	case "godsp", "go-dsp":
		return GoDSP, nil
	default:
		return Gonum, fmt.Errorf("%w: '%s'", ErrUnknownBackend, name)
	}
}

// New builds a transform of length n. n must be a power of two.
func New(backend Backend, n int) (Transform, error) {
	if !isPowerOfTwo(n) {
		return nil, fmt.Errorf("fft: transform length must be a power of 2, got %d", n)
	}

	switch backend {
	case Gonum:
		return &gonumTransform{n: n, fft: fourier.NewCmplxFFT(n)}, nil
	case AlgoFFT:
		plan, err := algofft.NewPlan64(n)
		if err != nil {
			return nil, fmt.Errorf("fft: algofft plan for length %d: %w", n, err)
		}
		return &algoTransform{n: n, plan: plan}, nil
	case GoDSP:
		return &godspTransform{n: n}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownBackend, int(backend))
	}
}

func checkLengths(n int, dst, src []complex128) error {
	if len(dst) != n || len(src) != n {
		return fmt.Errorf("%w: dst %d, src %d, want %d", ErrLength, len(dst), len(src), n)
	}
	return nil
}

// isPowerOfTwo relies on a power of two having exactly one bit set.
func isPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// gonumTransform works in place on dst through fftpack and does not allocate.
type gonumTransform struct {
	n   int
	fft *fourier.CmplxFFT
}

func (t *gonumTransform) Len() int { return t.n }

func (t *gonumTransform) Forward(dst, src []complex128) error {
	if err := checkLengths(t.n, dst, src); err != nil {
		return err
	}
	t.fft.Coefficients(dst, src)
	return nil
}

type algoTransform struct {
	n    int
	plan *algofft.Plan[complex128]
}

func (t *algoTransform) Len() int { return t.n }

func (t *algoTransform) Forward(dst, src []complex128) error {
	if err := checkLengths(t.n, dst, src); err != nil {
		return err
	}
	if err := t.plan.Forward(dst, src); err != nil {
		return fmt.Errorf("fft: algofft forward: %w", err)
	}
	return nil
}

// godspTransform has no reusable plan; go-dsp caches its twiddle factors
// per length internally and returns a fresh slice that is copied into dst.
type godspTransform struct {
	n int
}

func (t *godspTransform) Len() int { return t.n }

func (t *godspTransform) Forward(dst, src []complex128) error {
	if err := checkLengths(t.n, dst, src); err != nil {
		return err
	}
	copy(dst, godsp.FFT(src))
	return nil
}
