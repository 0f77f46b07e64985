// SPDX-License-Identifier: MIT

// Package audio captures I/Q samples from sound-card based receivers
// through PortAudio. The left input channel is taken as I and the right as Q.
package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// Device describes a PortAudio device that can deliver I/Q.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	LowLatencyMs      float64
	HighLatencyMs     float64
}

// iqInputChannelMin is the channel count needed for separate I and Q.
const iqInputChannelMin = 2

// Hooks replaced in tests, where no audio hardware is available.
var (
	paDevicesFunc    = portaudio.Devices
	defaultInputFunc = portaudio.DefaultInputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// InputDevices returns every device with at least two input channels.
// IDs are PortAudio device indices.
func InputDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		if info.MaxInputChannels < iqInputChannelMin {
			continue
		}
		devices = append(devices, Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowLatencyMs:      info.DefaultLowInputLatency.Seconds() * 1000,
			HighLatencyMs:     info.DefaultHighInputLatency.Seconds() * 1000,
		})
	}
	return devices, nil
}

// InputDevice retrieves the device for deviceID. A negative ID selects the
// system default input device.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID < 0 {
		return defaultInputFunc()
	}

	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	if deviceID >= len(infos) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}

	info := infos[deviceID]
	if info.MaxInputChannels < iqInputChannelMin {
		return nil, fmt.Errorf("device %d (%s) has %d input channels, I/Q needs %d",
			deviceID, info.Name, info.MaxInputChannels, iqInputChannelMin)
	}
	return info, nil
}

// ListDevices writes a human readable list of I/Q capable input devices.
func ListDevices(w io.Writer) error {
	devices, err := InputDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable I/Q Input Devices\n\n")
	if len(devices) == 0 {
		fmt.Fprintln(w, "    (none with two or more input channels)")
		return nil
	}

	for _, d := range devices {
		fmt.Fprintf(w, "[%d] %s\n", d.ID, d.Name)
		fmt.Fprintf(w, "    Input channels: %d\n", d.MaxInputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n", d.LowLatencyMs, d.HighLatencyMs)
		fmt.Fprintln(w)
	}
	return nil
}
