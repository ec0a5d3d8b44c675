// ABOUTME: Audio device enumeration for the CLI and control API
// ABOUTME: Wraps PortAudio's device list into a plain struct
package engine

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes one audio device.
type DeviceInfo struct {
	Name              string  `json:"name"`
	HostAPI           string  `json:"hostApi"`
	MaxInputChannels  int     `json:"maxInputChannels"`
	MaxOutputChannels int     `json:"maxOutputChannels"`
	DefaultSampleRate float64 `json:"defaultSampleRate"`
}

// ListDevices enumerates every audio device. The engine must be
// initialized first.
func ListDevices() ([]DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	infos := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		info := DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// findDevice locates a device by name with the needed direction.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	for _, d := range devs {
		if d.Name != name {
			continue
		}
		if input && d.MaxInputChannels == 0 {
			continue
		}
		if !input && d.MaxOutputChannels == 0 {
			continue
		}
		return d, nil
	}

	dir := "output"
	if input {
		dir = "input"
	}
	return nil, fmt.Errorf("no %s device named %q", dir, name)
}
