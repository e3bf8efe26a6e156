package audio

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Device describes a capture endpoint in a Go-friendly way.
type Device struct {
	Index           int
	Name            string
	HostAPI         string
	MaxInput        int
	MaxOutput       int
	DefaultSampleHz float64
	DefaultLatency  time.Duration
	IsDefaultInput  bool

	// Loopback is set for endpoints that capture what is being played out
	// rather than a microphone.
	Loopback bool

	info *portaudio.DeviceInfo
}

// loopbackKeywords are substrings host APIs use to name playback-capture
// endpoints: PulseAudio/PipeWire monitors, WASAPI loopback, Windows
// "Stereo Mix" and the common macOS virtual devices.
var loopbackKeywords = []string{
	"loopback",
	"monitor",
	"stereo mix",
	"what u hear",
	"wave out mix",
	"blackhole",
	"soundflower",
}

// IsLoopbackName reports whether a device name looks like a loopback endpoint.
func IsLoopbackName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range loopbackKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// EnumerateDevices returns every device in the order PortAudio reports them.
// Capture selection walks this order.
func EnumerateDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}

	var defaultInputIndex = -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInputIndex = def.Index
	}

	devices := make([]Device, 0, len(infos))
	for _, d := range infos {
		host := ""
		if d.HostApi != nil {
			host = d.HostApi.Name
		}
		devices = append(devices, fromInfo(d, host, d.Index == defaultInputIndex))
	}
	return devices, nil
}

// ListDevices returns all available devices sorted by host and name, for display.
func ListDevices() ([]Device, error) {
	devices, err := EnumerateDevices()
	if err != nil {
		return nil, err
	}
	SortForDisplay(devices)
	return devices, nil
}

// SortForDisplay orders devices by host API, then name.
func SortForDisplay(devices []Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})
}

func fromInfo(d *portaudio.DeviceInfo, host string, isDefault bool) Device {
	return Device{
		Index:           d.Index,
		Name:            d.Name,
		HostAPI:         host,
		MaxInput:        d.MaxInputChannels,
		MaxOutput:       d.MaxOutputChannels,
		DefaultSampleHz: d.DefaultSampleRate,
		DefaultLatency:  d.DefaultLowInputLatency,
		IsDefaultInput:  isDefault,
		Loopback:        d.MaxInputChannels > 0 && IsLoopbackName(d.Name),
		info:            d,
	}
}
