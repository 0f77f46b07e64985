// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"

	"iqpower/internal/iq"
	applog "iqpower/internal/log"

	"github.com/gordonklaus/portaudio"
)

// DeviceSource is a blocking I/Q source backed by a PortAudio input stream.
// It never reaches EOF; the caller stops it by cancelling and closing.
type DeviceSource struct {
	stream  *portaudio.Stream
	read    func() error // Fills buf with one hardware buffer.
	buf     []int8       // Interleaved stereo, framesPerBuffer*2 values.
	pending []int8       // Unconsumed tail of buf.
}

// OpenDeviceSource opens and starts a stereo 8-bit input stream.
func OpenDeviceSource(deviceID int, sampleRate float64, framesPerBuffer int) (*DeviceSource, error) {
	device, err := InputDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}

	s := &DeviceSource{buf: make([]int8, framesPerBuffer*2)}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 2,
			Latency:  device.DefaultHighInputLatency,
		},
		FramesPerBuffer: framesPerBuffer,
		SampleRate:      sampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on '%s': %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream on '%s': %w", device.Name, err)
	}

	applog.Infof("Audio: Capturing I/Q from '%s' (SampleRate: %.0f Hz, FramesPerBuffer: %d)",
		device.Name, sampleRate, framesPerBuffer)

	s.stream = stream
	s.read = stream.Read
	return s, nil
}

// ReadBlock implements iq.Source. It blocks until dst is full.
func (s *DeviceSource) ReadBlock(dst []int8) (int, error) {
	n := 0
	for n < len(dst) {
		if len(s.pending) == 0 {
			if err := s.read(); err != nil {
				if !errors.Is(err, portaudio.InputOverflowed) {
					return n, fmt.Errorf("failed to read input stream: %w", err)
				}
				// The buffer is still delivered; samples were lost before it.
				applog.Warnf("Audio: Input overflow, samples dropped")
			}
			s.pending = s.buf
		}
		c := copy(dst[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	return n, nil
}

// Close stops and closes the stream.
func (s *DeviceSource) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		s.stream = nil
		return err
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}

var _ iq.Source = (*DeviceSource)(nil)
