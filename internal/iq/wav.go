// SPDX-License-Identifier: MIT
package iq

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM = 1
	iqChannels   = 2 // Left is I, right is Q.

	// RecordingBitDepth is used by WAVRecorder. 16-bit PCM is signed in the
	// WAV format, so 8-bit samples round trip by a plain shift.
	RecordingBitDepth = 16
)

// WAVSource reads stereo PCM WAV files where the left channel carries I and
// the right channel Q, as written by most SDR applications.
type WAVSource struct {
	file     *os.File
	decoder  *wav.Decoder
	buf      *audio.IntBuffer
	bitDepth int
	eof      bool
}

// OpenWAV opens an I/Q WAV file and checks that it is two channel PCM.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("iq: '%s' is not a valid WAV file", path)
	}
	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("iq: failed to locate PCM data in '%s': %w", path, err)
	}
	if d.WavAudioFormat != wavFormatPCM {
		f.Close()
		return nil, fmt.Errorf("iq: '%s' uses audio format %d, only PCM is supported", path, d.WavAudioFormat)
	}
	if d.NumChans != iqChannels {
		f.Close()
		return nil, fmt.Errorf("iq: '%s' has %d channels, I/Q needs %d", path, d.NumChans, iqChannels)
	}

	switch d.BitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		return nil, fmt.Errorf("iq: '%s' has unsupported bit depth %d", path, d.BitDepth)
	}

	return &WAVSource{
		file:     f,
		decoder:  d,
		bitDepth: int(d.BitDepth),
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: iqChannels, SampleRate: int(d.SampleRate)},
		},
	}, nil
}

// SampleRate returns the sample rate stored in the file header.
func (s *WAVSource) SampleRate() float64 {
	return float64(s.decoder.SampleRate)
}

// ReadBlock implements Source. Samples wider than 8 bits keep their most
// significant byte.
func (s *WAVSource) ReadBlock(dst []int8) (int, error) {
	if s.eof {
		return 0, io.EOF
	}
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("iq: failed to decode WAV samples: %w", err)
	}
	if n == 0 {
		s.eof = true
		return 0, io.EOF
	}
	if err != nil || n < len(dst) {
		s.eof = true
	}

	for i, v := range s.buf.Data[:n] {
		dst[i] = s.toInt8(v)
	}
	return n, nil
}

func (s *WAVSource) toInt8(v int) int8 {
	switch s.bitDepth {
	case 8:
		// 8-bit WAV is offset binary; the low byte is the raw sample.
		return int8(uint8(v) - 128)
	case 16:
		return int8(v >> 8)
	case 24:
		return int8(v >> 16)
	default:
		return int8(v >> 24)
	}
}

// Close closes the file.
func (s *WAVSource) Close() error {
	return s.file.Close()
}

var _ Source = (*WAVSource)(nil)

var errRecorderClosed = errors.New("iq: recording is closed")

// WAVRecorder appends consumed I/Q blocks to a stereo 16-bit WAV file.
type WAVRecorder struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	values  int
}

// NewWAVRecorder creates path and prepares it for I/Q samples at the given
// sample rate.
func NewWAVRecorder(path string, sampleRate float64) (*WAVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("iq: failed to create recording: %w", err)
	}

	rate := int(sampleRate)
	return &WAVRecorder{
		file:    f,
		encoder: wav.NewEncoder(f, rate, RecordingBitDepth, iqChannels, wavFormatPCM),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: iqChannels, SampleRate: rate},
			SourceBitDepth: RecordingBitDepth,
		},
	}, nil
}

// WriteBlock appends the whole pairs of block. A trailing unpaired value is
// dropped so the channels stay aligned.
func (r *WAVRecorder) WriteBlock(block []int8) error {
	if r.encoder == nil {
		return errRecorderClosed
	}
	n := len(block) &^ 1
	if n == 0 {
		return nil
	}
	if cap(r.buf.Data) < n {
		r.buf.Data = make([]int, n)
	}
	r.buf.Data = r.buf.Data[:n]
	for i, v := range block[:n] {
		r.buf.Data[i] = int(v) << 8
	}

	if err := r.encoder.Write(r.buf); err != nil {
		return fmt.Errorf("iq: failed to write recording: %w", err)
	}
	r.values += n
	return nil
}

// Values returns the number of I/Q values recorded so far.
func (r *WAVRecorder) Values() int {
	return r.values
}

// Close finalizes the WAV header and closes the file.
func (r *WAVRecorder) Close() error {
	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			r.file.Close()
			return fmt.Errorf("iq: failed to finalize recording: %w", err)
		}
		r.encoder = nil
	}
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
