// Package playback plays synthesized speech returned with final responses.
package playback

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrEmptyAudio is returned for a payload with no audio bytes
var ErrEmptyAudio = errors.New("empty audio payload")

// Speaker plays base64 encoded MP3 clips on the default output device.
// A new clip replaces the one currently playing.
type Speaker struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	ready      bool
	logger     zerolog.Logger
}

// NewSpeaker creates a speaker; the output device is opened on first Play
func NewSpeaker() *Speaker {
	return &Speaker{
		logger: log.With().Str("component", "playback").Logger(),
	}
}

// Decode turns a base64 payload into MP3 bytes
func Decode(data string) ([]byte, error) {
	if data == "" {
		return nil, ErrEmptyAudio
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid audio payload: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyAudio
	}
	return raw, nil
}

// Play decodes the clip and starts playing it without waiting for the end
func (s *Speaker) Play(data string) error {
	raw, err := Decode(data)
	if err != nil {
		return err
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(raw)))
	if err != nil {
		return fmt.Errorf("failed to decode mp3: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			streamer.Close()
			return fmt.Errorf("failed to open speaker: %w", err)
		}
		s.sampleRate = format.SampleRate
		s.ready = true
	}

	var clip beep.Streamer = streamer
	if format.SampleRate != s.sampleRate {
		clip = beep.Resample(4, format.SampleRate, s.sampleRate, streamer)
	}

	speaker.Clear()
	started := time.Now()
	speaker.Play(beep.Seq(clip, beep.Callback(func() {
		streamer.Close()
		s.logger.Debug().Dur("elapsed", time.Since(started)).Msg("clip finished")
	})))
	s.logger.Debug().
		Int("bytes", len(raw)).
		Int("sample_rate", int(format.SampleRate)).
		Msg("playing clip")
	return nil
}

// Close stops playback and releases the device
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		speaker.Clear()
		speaker.Close()
		s.ready = false
	}
}
