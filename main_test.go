// SPDX-License-Identifier: MIT
package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"iqpower/cmd"
	"iqpower/internal/config"
	"iqpower/internal/iq"
	"iqpower/internal/spectrum"
	"iqpower/pkg/utils"
)

func TestExecuteCommandBackends(t *testing.T) {
	var buf bytes.Buffer
	if err := executeCommand(cmd.CommandBackends, &buf); err != nil {
		t.Fatal(err)
	}
	if got := strings.Fields(buf.String()); strings.Join(got, ",") != "gonum,algofft,godsp" {
		t.Errorf("backends = %v", got)
	}
}

func TestExecuteCommandUnknown(t *testing.T) {
	if err := executeCommand("calibrate", io.Discard); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestRunRawFileWithRecording(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tone.u8")
	samples := utils.GenerateTone(spectrum.TransformLength, spectrum.DefaultSampleRate, 5000, 100)
	if err := os.WriteFile(input, utils.ToUnsigned(samples), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.Input.Path = input
	cfg.Input.Unsigned = true
	cfg.Analysis.BandwidthHz = 10000
	cfg.Recording.Enabled = true
	cfg.Recording.OutputFile = filepath.Join(dir, "copy.wav")
	cfg.Transport.WebSocketEnabled = true
	cfg.Transport.WebSocketAddress = "127.0.0.1:0"

	if err := run(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}

	rec, err := iq.OpenWAV(cfg.Recording.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	got := make([]int8, 2*len(samples))
	n, err := rec.ReadBlock(got)
	if err != nil || n != len(samples) {
		t.Fatalf("ReadBlock() = %d, %v; want %d values", n, err, len(samples))
	}
	if !slices.Equal(got[:n], samples) {
		t.Error("recording does not match the input")
	}
}

func TestRunMissingInput(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Input.Path = filepath.Join(t.TempDir(), "missing.iq")
	if err := run(context.Background(), cfg); err == nil {
		t.Error("expected error for a missing input file")
	}
}

func TestRunCancelled(t *testing.T) {
	input := filepath.Join(t.TempDir(), "dc.iq")
	if err := os.WriteFile(input, make([]byte, 4*spectrum.TransformLength), 0644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := config.NewConfig()
	cfg.Input.Path = input
	if err := run(ctx, cfg); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
