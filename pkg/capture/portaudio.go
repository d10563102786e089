package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PortAudioConfig holds microphone settings
type PortAudioConfig struct {
	FramesPerBuffer int
	Handler         FrameHandler
}

// PortAudioSource captures mono float32 frames from the default input device
// at the device's default sample rate.
type PortAudioSource struct {
	config     PortAudioConfig
	mu         sync.Mutex
	stream     *portaudio.Stream
	sampleRate int
	running    bool
	logger     zerolog.Logger
}

// NewPortAudioSource creates a source; the device is opened by Init
func NewPortAudioSource(config PortAudioConfig) *PortAudioSource {
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if config.Handler == nil {
		config.Handler = func([]float32) {}
	}
	return &PortAudioSource{
		config: config,
		logger: log.With().Str("component", "capture").Logger(),
	}
}

// Init initializes PortAudio and opens the default input stream
func (s *PortAudioSource) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: portaudio: %v", ErrInitFailed, err)
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: no input device: %v", ErrInitFailed, err)
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.FramesPerBuffer = s.config.FramesPerBuffer

	handler := s.config.Handler
	stream, err := portaudio.OpenStream(params, func(in []float32) {
		// PortAudio reuses the buffer between callbacks
		frame := make([]float32, len(in))
		copy(frame, in)
		handler(frame)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: open %s: %v", ErrInitFailed, device.Name, err)
	}

	s.stream = stream
	s.sampleRate = int(params.SampleRate)
	s.logger.Info().
		Str("device", device.Name).
		Int("sample_rate", s.sampleRate).
		Int("frames_per_buffer", s.config.FramesPerBuffer).
		Msg("input device opened")
	return nil
}

// Resume starts the input stream
func (s *PortAudioSource) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return fmt.Errorf("capture not initialized")
	}
	if s.running {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	s.running = true
	return nil
}

// Suspend stops the input stream but keeps the device open
func (s *PortAudioSource) Suspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil || !s.running {
		return nil
	}
	s.running = false
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

// SampleRate returns the device sample rate
func (s *PortAudioSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// Close stops the stream and terminates PortAudio
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}
	var err error
	if s.running {
		err = s.stream.Stop()
		s.running = false
	}
	if cerr := s.stream.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.stream = nil
	portaudio.Terminate()
	return err
}
