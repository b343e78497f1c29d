package audio

import (
	"fmt"
	"regexp"
)

// DeviceKind distinguishes capture and playback endpoints during input
// selection.
type DeviceKind string

const (
	DeviceInput  DeviceKind = "input"
	DeviceOutput DeviceKind = "output"
)

// Device describes one audio endpoint. Group ties together endpoints that
// belong to the same physical hardware, which is how a headset microphone
// is matched to its headset output.
type Device struct {
	ID      string
	Name    string
	Group   string
	Kind    DeviceKind
	Default bool
}

// CaptureStream is one open microphone stream. Stop returns everything
// captured since Start.
type CaptureStream interface {
	Start() error
	Stop() ([]float32, error)
	Close() error
}

// CaptureBackend enumerates audio devices and opens mono capture streams.
type CaptureBackend interface {
	Devices() ([]Device, error)
	Open(deviceID string, sampleRate int) (CaptureStream, error)
}

// SelectInput picks the capture device for a recording session:
// an input sharing a hardware group with a device whose name matches
// hmdHint wins, then the system default input, then the first input.
func SelectInput(devices []Device, hmdHint *regexp.Regexp) (Device, error) {
	hmdGroups := map[string]bool{}
	if hmdHint != nil {
		for _, dev := range devices {
			if hmdHint.MatchString(dev.Name) {
				hmdGroups[dev.Group] = true
			}
		}
	}

	var selected Device
	found := false
	for _, dev := range devices {
		if dev.Kind != DeviceInput {
			continue
		}
		if dev.Default || !found {
			selected = dev
			found = true
		}
	}
	if !found {
		return Device{}, fmt.Errorf("no audio input devices available")
	}

	// A microphone grouped with the headset output beats the default.
	for _, dev := range devices {
		if dev.Kind == DeviceInput && dev.Group != "" && hmdGroups[dev.Group] {
			selected = dev
		}
	}
	return selected, nil
}
