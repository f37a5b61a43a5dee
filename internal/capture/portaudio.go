package capture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Device describes an input-capable audio device.
type Device struct {
	Index             int
	Name              string
	Channels          int
	DefaultSampleRate float64
	HostAPI           string
	Default           bool
}

// Devices lists input-capable devices.
func Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}
	defer portaudio.Terminate()

	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices failed: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []Device
	for _, d := range all {
		if d.MaxInputChannels <= 0 {
			continue
		}
		dev := Device{
			Index:             d.Index,
			Name:              d.Name,
			Channels:          d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           def != nil && def.Index == d.Index,
		}
		if d.HostApi != nil {
			dev.HostAPI = d.HostApi.Name
		}
		out = append(out, dev)
	}
	return out, nil
}

type paStream struct {
	*portaudio.Stream
}

// Close closes the stream and releases the PortAudio reference taken by openPortAudio.
func (s *paStream) Close() error {
	err := s.Stream.Close()
	_ = portaudio.Terminate()
	return err
}

func openPortAudio(device, rate int, buf []float32) (stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}
	dev, err := inputDevice(device)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	p := portaudio.LowLatencyParameters(dev, nil)
	p.Input.Channels = 1
	p.SampleRate = float64(rate)
	p.FramesPerBuffer = len(buf)

	s, err := portaudio.OpenStream(p, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	return &paStream{Stream: s}, nil
}

func inputDevice(index int) (*portaudio.DeviceInfo, error) {
	if index == DefaultDevice {
		return portaudio.DefaultInputDevice()
	}
	all, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range all {
		if d.Index == index {
			if d.MaxInputChannels <= 0 {
				return nil, fmt.Errorf("device %d (%s) has no input channels", index, d.Name)
			}
			return d, nil
		}
	}
	return nil, fmt.Errorf("no audio device with index %d", index)
}
