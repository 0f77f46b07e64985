// SPDX-License-Identifier: MIT

// Package iq reads and writes blocks of interleaved 8-bit I/Q samples.
package iq

import (
	"bufio"
	"errors"
	"io"
	"os"
)

// Source delivers blocks of interleaved signed I/Q values.
type Source interface {
	// ReadBlock fills dst and returns the number of values written. A short
	// final block is returned with a nil error; the following call returns
	// 0 and io.EOF.
	ReadBlock(dst []int8) (int, error)
	Close() error
}

// ToSigned converts offset-binary bytes (rtl-sdr style, 128 = zero) from
// src into signed values in dst and returns the number converted. Every
// value present is converted, not just whole pairs.
func ToSigned(dst []int8, src []byte) int {
	n := min(len(dst), len(src))
	for i, b := range src[:n] {
		dst[i] = int8(b - 128)
	}
	return n
}

// RawSource reads headerless interleaved 8-bit samples from a stream.
type RawSource struct {
	r        *bufio.Reader
	closer   io.Closer
	unsigned bool
	scratch  []byte
	eof      bool
}

// NewRawSource wraps r. When unsigned is set every value read is shifted by
// 128 to make it signed.
func NewRawSource(r io.Reader, unsigned bool) *RawSource {
	s := &RawSource{
		r:        bufio.NewReaderSize(r, 1<<16),
		unsigned: unsigned,
	}
	if c, ok := r.(io.Closer); ok && r != os.Stdin {
		s.closer = c
	}
	return s
}

// OpenRaw opens a raw sample file, or standard input for "" and "-".
func OpenRaw(path string, unsigned bool) (*RawSource, error) {
	if path == "" || path == "-" {
		return NewRawSource(os.Stdin, unsigned), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewRawSource(f, unsigned), nil
}

// ReadBlock implements Source.
func (s *RawSource) ReadBlock(dst []int8) (int, error) {
	if s.eof {
		return 0, io.EOF
	}
	if cap(s.scratch) < len(dst) {
		s.scratch = make([]byte, len(dst))
	}
	buf := s.scratch[:len(dst)]

	n, err := io.ReadFull(s.r, buf)
	switch {
	case errors.Is(err, io.EOF):
		s.eof = true
		return 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.eof = true
	case err != nil:
		return 0, err
	}

	if s.unsigned {
		return ToSigned(dst, buf[:n]), nil
	}
	for i, b := range buf[:n] {
		dst[i] = int8(b)
	}
	return n, nil
}

// Close closes the underlying file. Standard input is left open.
func (s *RawSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

var _ Source = (*RawSource)(nil)
