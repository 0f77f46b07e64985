// SPDX-License-Identifier: MIT

// Package report writes measurements as text lines.
package report

import (
	"fmt"
	"io"

	"iqpower/internal/analyzer"
)

// LineFormat is tag, linear power and power in dB, separated by four spaces.
const LineFormat = "%d    %0.2f    %0.2f\n"

// Writer prints one line per measurement.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer printing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Publish implements analyzer.Sink.
func (w *Writer) Publish(m analyzer.Measurement) error {
	if _, err := fmt.Fprintf(w.w, LineFormat, m.Tag, m.Power, m.PowerDB); err != nil {
		return fmt.Errorf("report: failed to write measurement: %w", err)
	}
	return nil
}

var _ analyzer.Sink = (*Writer)(nil)
