package audio

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// PortAudio is the Backend backed by the system PortAudio library.
// Initialize must have succeeded before it is used.
type PortAudio struct{}

// Devices returns every device PortAudio reports, in enumeration order.
func (PortAudio) Devices() ([]Device, error) {
	devices, err := EnumerateDevices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	return devices, nil
}

// OpenStream opens a PortAudio input stream with a device-chosen buffer size.
func (PortAudio) OpenStream(dev Device, format Format, process func(in []int16)) (Stream, error) {
	if dev.info == nil {
		return nil, fmt.Errorf("audio device %q was not enumerated by PortAudio", dev.Name)
	}

	inParams := portaudio.StreamDeviceParameters{
		Device:   dev.info,
		Channels: format.Channels,
		Latency:  dev.info.DefaultLowInputLatency,
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input:           inParams,
		Output:          portaudio.StreamDeviceParameters{},
		SampleRate:      format.SampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return &paStream{stream: stream}, nil
}

type paStream struct {
	stream *portaudio.Stream
}

func (s *paStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	return nil
}

// Stop uses Pa_StopStream, which drains pending callbacks before returning.
func (s *paStream) Stop() error {
	if err := s.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		return fmt.Errorf("stop stream: %w", err)
	}
	return nil
}

func (s *paStream) Close() error {
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}

// errorsIsInvalidStreamState checks if the provided error stems from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	const invalidStateMsg = "PaErrorCode -9986"
	return strings.Contains(err.Error(), invalidStateMsg)
}
