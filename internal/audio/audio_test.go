// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func mockDevices(t *testing.T, infos []*portaudio.DeviceInfo, err error) {
	t.Helper()
	orig := paDevicesFunc
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, err }
	t.Cleanup(func() { paDevicesFunc = orig })
}

var testInfos = []*portaudio.DeviceInfo{
	{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
	{Name: "USB Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
	{Name: "SoftRock", MaxInputChannels: 2, DefaultSampleRate: 96000,
		DefaultLowInputLatency: 5 * time.Millisecond, DefaultHighInputLatency: 20 * time.Millisecond},
}

func TestInputDevicesFiltersStereoInputs(t *testing.T) {
	mockDevices(t, testInfos, nil)

	devices, err := InputDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	d := devices[0]
	if d.ID != 2 || d.Name != "SoftRock" || d.DefaultSampleRate != 96000 {
		t.Errorf("device = %+v", d)
	}
	if math.Abs(d.LowLatencyMs-5) > 1e-9 || math.Abs(d.HighLatencyMs-20) > 1e-9 {
		t.Errorf("latency = %.2f/%.2f ms, want 5/20", d.LowLatencyMs, d.HighLatencyMs)
	}
}

func TestInputDevicesError(t *testing.T) {
	mockDevices(t, nil, fmt.Errorf("mock error"))

	_, err := InputDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	mockDevices(t, testInfos, nil)

	tests := []struct {
		name    string
		id      int
		wantErr string
	}{
		{"Stereo Input", 2, ""},
		{"Mono Input", 1, "input channels"},
		{"Output Only", 0, "input channels"},
		{"Out Of Range", 3, "invalid device ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := InputDevice(tt.id)
			if tt.wantErr == "" {
				if err != nil || dev.Name != "SoftRock" {
					t.Errorf("InputDevice(%d) = %v, %v", tt.id, dev, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("InputDevice(%d) error = %v, want %q", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestInputDeviceDefault(t *testing.T) {
	orig := defaultInputFunc
	defer func() { defaultInputFunc = orig }()
	defaultInputFunc = func() (*portaudio.DeviceInfo, error) { return testInfos[2], nil }

	dev, err := InputDevice(-1)
	if err != nil || dev != testInfos[2] {
		t.Errorf("InputDevice(-1) = %v, %v", dev, err)
	}
}

func TestListDevices(t *testing.T) {
	mockDevices(t, testInfos, nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"[2] SoftRock", "Default sample rate: 96000 Hz", "Low=5.00ms, High=20.00ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "USB Mic") {
		t.Errorf("mono device listed:\n%s", out)
	}
}

// fakeSource hands out consecutive counter values, one hardware buffer per read.
func fakeSource(frames int, failAfter int, failErr error) *DeviceSource {
	s := &DeviceSource{buf: make([]int8, frames*2)}
	next := int8(0)
	reads := 0
	s.read = func() error {
		reads++
		for i := range s.buf {
			s.buf[i] = next
			next++
		}
		if failAfter > 0 && reads > failAfter {
			return failErr
		}
		return nil
	}
	return s
}

func TestDeviceSourceReassemblesBlocks(t *testing.T) {
	s := fakeSource(3, 0, nil) // 6 values per hardware buffer

	var got []int8
	block := make([]int8, 4)
	for range 3 {
		n, err := s.ReadBlock(block)
		if err != nil || n != 4 {
			t.Fatalf("ReadBlock() = %d, %v", n, err)
		}
		got = append(got, block...)
	}

	want := []int8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	if !slices.Equal(got, want) {
		t.Errorf("values = %v, want %v", got, want)
	}
}

func TestDeviceSourceOverflowIsNotFatal(t *testing.T) {
	s := fakeSource(2, 1, portaudio.InputOverflowed)

	block := make([]int8, 12)
	n, err := s.ReadBlock(block)
	if err != nil || n != 12 {
		t.Errorf("ReadBlock() = %d, %v; want 12, nil", n, err)
	}
}

func TestDeviceSourceReadError(t *testing.T) {
	boom := errors.New("stream gone")
	s := fakeSource(2, 1, boom)

	n, err := s.ReadBlock(make([]int8, 12))
	if !errors.Is(err, boom) {
		t.Fatalf("expected stream error, got %v", err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4 values before the failure", n)
	}
}

func TestDeviceSourceCloseWithoutStream(t *testing.T) {
	s := &DeviceSource{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
