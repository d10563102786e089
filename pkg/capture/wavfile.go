package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WAVConfig holds settings for replaying a WAV file as microphone input
type WAVConfig struct {
	Path            string
	FramesPerBuffer int
	Realtime        bool // pace frames at the file's sample rate
	Handler         FrameHandler
	OnEnd           func() // called once the whole file has been delivered
}

// WAVSource replays a WAV file in place of a microphone. Multi-channel files
// are mixed down to mono.
type WAVSource struct {
	config     WAVConfig
	mu         sync.Mutex
	samples    []float32
	sampleRate int
	pos        int
	stop       chan struct{}
	stopped    chan struct{}
	logger     zerolog.Logger
}

// NewWAVSource creates a file source; the file is read by Init
func NewWAVSource(config WAVConfig) *WAVSource {
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if config.Handler == nil {
		config.Handler = func([]float32) {}
	}
	return &WAVSource{
		config: config,
		logger: log.With().Str("component", "capture").Str("file", config.Path).Logger(),
	}
}

// Init decodes the whole file into memory
func (s *WAVSource) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.samples != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	f, err := os.Open(s.config.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	defer f.Close()

	samples, rate, err := decodeMono(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInitFailed, s.config.Path, err)
	}
	s.samples = samples
	s.sampleRate = rate
	s.logger.Info().
		Int("sample_rate", rate).
		Int("samples", len(samples)).
		Msg("wav input loaded")
	return nil
}

func decodeMono(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, err
	}
	if buf == nil {
		return nil, 0, errors.New("empty wav buffer")
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int(1) << (bitDepth - 1))

	out := make([]float32, len(buf.Data)/channels)
	for i := range out {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		out[i] = sum / float32(channels)
	}

	rate := int(dec.SampleRate)
	if rate == 0 {
		return nil, 0, errors.New("wav header has no sample rate")
	}
	return out, rate, nil
}

// Resume starts delivering frames from the current position. A file that
// has been fully delivered is replayed from the start.
func (s *WAVSource) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.samples == nil {
		return fmt.Errorf("capture not initialized")
	}
	if s.stop != nil {
		select {
		case <-s.stopped:
		default:
			return nil
		}
	}
	if s.pos >= len(s.samples) {
		s.pos = 0
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.deliver(s.stop, s.stopped)
	return nil
}

func (s *WAVSource) deliver(stop, stopped chan struct{}) {
	ended := s.play(stop)
	close(stopped)
	if ended && s.config.OnEnd != nil {
		s.config.OnEnd()
	}
}

// play hands out frames until stop is closed or the file is exhausted,
// reporting whether the end of the file was reached
func (s *WAVSource) play(stop chan struct{}) bool {
	var tick <-chan time.Time
	if s.config.Realtime {
		period := time.Duration(s.config.FramesPerBuffer) * time.Second / time.Duration(s.sampleRate)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-stop:
				return false
			case <-tick:
			}
		} else {
			select {
			case <-stop:
				return false
			default:
			}
		}

		s.mu.Lock()
		if s.pos >= len(s.samples) {
			s.mu.Unlock()
			return true
		}
		end := s.pos + s.config.FramesPerBuffer
		if end > len(s.samples) {
			end = len(s.samples)
		}
		frame := make([]float32, end-s.pos)
		copy(frame, s.samples[s.pos:end])
		s.pos = end
		s.mu.Unlock()

		s.config.Handler(frame)
	}
}

// Suspend stops delivery and waits for the delivery goroutine to exit
func (s *WAVSource) Suspend() error {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	select {
	case <-stopped:
	default:
		close(stop)
		<-stopped
	}
	return nil
}

// Rewind moves the replay position back to the start of the file
func (s *WAVSource) Rewind() {
	s.mu.Lock()
	s.pos = 0
	s.mu.Unlock()
}

// SampleRate returns the file sample rate
func (s *WAVSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// Close stops delivery
func (s *WAVSource) Close() error {
	return s.Suspend()
}
