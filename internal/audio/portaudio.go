package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const captureChunkSize = 1024

// PortAudioBackend captures from microphones via PortAudio. Initialize is
// refcounted by Close, so one backend instance should be shared.
type PortAudioBackend struct{}

// NewPortAudioBackend initializes the PortAudio runtime.
func NewPortAudioBackend() (*PortAudioBackend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudioBackend{}, nil
}

// Close releases the PortAudio runtime.
func (b *PortAudioBackend) Close() error {
	return portaudio.Terminate()
}

func (b *PortAudioBackend) Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	defaultIn, _ := portaudio.DefaultInputDevice()

	var devices []Device
	for _, info := range infos {
		group := ""
		if info.HostApi != nil {
			group = info.HostApi.Name
		}
		if info.MaxInputChannels > 0 {
			devices = append(devices, Device{
				ID:      info.Name,
				Name:    info.Name,
				Group:   group,
				Kind:    DeviceInput,
				Default: defaultIn != nil && info.Name == defaultIn.Name,
			})
		}
		if info.MaxOutputChannels > 0 {
			devices = append(devices, Device{
				ID:    info.Name,
				Name:  info.Name,
				Group: group,
				Kind:  DeviceOutput,
			})
		}
	}
	return devices, nil
}

func (b *PortAudioBackend) Open(deviceID string, sampleRate int) (CaptureStream, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	var info *portaudio.DeviceInfo
	for _, candidate := range infos {
		if candidate.Name == deviceID && candidate.MaxInputChannels > 0 {
			info = candidate
			break
		}
	}
	if info == nil {
		return nil, fmt.Errorf("input device %q not found", deviceID)
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = captureChunkSize

	buf := make([]float32, captureChunkSize)
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to open mic %q: %w", deviceID, err)
	}

	return &portAudioStream{stream: stream, buf: buf}, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
	buf    []float32

	mu       sync.Mutex
	recorded []float32
	done     chan struct{}
	stopped  chan struct{}
}

func (s *portAudioStream) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start mic: %w", err)
	}
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.capture()
	return nil
}

func (s *portAudioStream) capture() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			return
		}
		chunk := make([]float32, len(s.buf))
		copy(chunk, s.buf)
		s.mu.Lock()
		s.recorded = append(s.recorded, chunk...)
		s.mu.Unlock()
	}
}

func (s *portAudioStream) Stop() ([]float32, error) {
	if s.done == nil {
		return nil, nil
	}
	close(s.done)
	<-s.stopped
	s.done = nil
	if err := s.stream.Stop(); err != nil {
		return nil, fmt.Errorf("failed to stop mic: %w", err)
	}

	s.mu.Lock()
	samples := s.recorded
	s.recorded = nil
	s.mu.Unlock()
	return samples, nil
}

func (s *portAudioStream) Close() error {
	return s.stream.Close()
}
