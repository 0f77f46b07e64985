// SPDX-License-Identifier: MIT

// Package utils holds I/Q signal generators and small helpers shared by
// tests across the module.
package utils

import (
	"math"
	"math/rand/v2"
	"sync"
)

// FullScale is the largest positive value of a signed 8-bit sample.
const FullScale = 127

// MockTransport records everything sent to it instead of transmitting.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []any
	Closed bool
}

// Send stores the data for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, data)
	return nil
}

// Close marks the transport as closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *MockTransport) Messages() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.Sent))
	copy(out, m.Sent)
	return out
}

// GenerateDC returns pairs interleaved I/Q samples holding constant values.
func GenerateDC(pairs int, i, q int8) []int8 {
	buffer := make([]int8, 2*pairs)
	for k := range pairs {
		buffer[2*k] = i
		buffer[2*k+1] = q
	}
	return buffer
}

// GenerateTone returns a complex exponential at frequency Hz (negative
// frequencies rotate the other way) with the given peak amplitude, as
// interleaved 8-bit I/Q.
func GenerateTone(pairs int, sampleRate, frequency, amplitude float64) []int8 {
	buffer := make([]int8, 2*pairs)
	for k := range pairs {
		phase := 2 * math.Pi * frequency * float64(k) / sampleRate
		buffer[2*k] = quantize(amplitude * math.Cos(phase))
		buffer[2*k+1] = quantize(amplitude * math.Sin(phase))
	}
	return buffer
}

// GenerateNoise returns uniformly distributed I/Q values in
// [-amplitude, amplitude]. The same seed always yields the same samples.
func GenerateNoise(pairs int, amplitude int8, seed uint64) []int8 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	span := 2*int(amplitude) + 1
	buffer := make([]int8, 2*pairs)
	for i := range buffer {
		buffer[i] = int8(rng.IntN(span) - int(amplitude))
	}
	return buffer
}

// ToUnsigned converts signed samples to the offset-binary encoding used by
// rtl-sdr style receivers.
func ToUnsigned(samples []int8) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = byte(int(s) + 128)
	}
	return out
}

func quantize(v float64) int8 {
	r := math.Round(v)
	if r > FullScale {
		return FullScale
	}
	if r < -128 {
		return -128
	}
	return int8(r)
}

// FindPeakBin returns the index of the largest value within
// [startBin, endBin], clamping the range to the slice.
func FindPeakBin(values []float64, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(values) {
		endBin = len(values) - 1
	}

	peakBin := startBin
	peakValue := values[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > peakValue {
			peakValue = values[bin]
			peakBin = bin
		}
	}

	return peakBin
}
