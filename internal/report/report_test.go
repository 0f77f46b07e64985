// SPDX-License-Identifier: MIT
package report

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"iqpower/internal/analyzer"
)

func TestPublish(t *testing.T) {
	tests := []struct {
		name string
		m    analyzer.Measurement
		want string
	}{
		{"Typical", analyzer.Measurement{Tag: 3, Power: 1234.5678, PowerDB: 30.9151}, "3    1234.57    30.92\n"},
		{"Negative Tag", analyzer.Measurement{Tag: -1, Power: 0.5, PowerDB: -3.0103}, "-1    0.50    -3.01\n"},
		{"Zero Power", analyzer.Measurement{Tag: 0, Power: 0, PowerDB: math.Inf(-1)}, "0    0.00    -Inf\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewWriter(&buf).Publish(tt.m); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("Publish() wrote %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestPublishWriteError(t *testing.T) {
	err := NewWriter(brokenWriter{}).Publish(analyzer.Measurement{})
	if err == nil {
		t.Error("expected write error, got nil")
	}
}
