// Package stt defines streaming speech-to-text for practice turns.
package stt

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotConnected is returned when audio is sent before Connect
var ErrNotConnected = errors.New("transcriber not connected")

// Transcriber streams one turn of 16 kHz mono PCM16 audio to a provider
type Transcriber interface {
	// Connect opens the provider stream
	Connect(ctx context.Context) error

	// SendAudio forwards one chunk of the turn
	SendAudio(pcm []int16) error

	// Finish ends the stream and returns the transcript of the whole turn
	Finish(ctx context.Context) (string, error)

	// Close abandons the stream
	Close() error
}

// Factory creates a transcriber for one turn
type Factory func() Transcriber

// Config holds common provider settings
type Config struct {
	APIKey     string
	URL        string // provider endpoint override
	SampleRate int    // 16000 unless set
}

// Transcript accumulates the segments of one turn
type Transcript struct {
	mu      sync.Mutex
	final   []string
	pending string
}

// AddFinal appends a finalized segment and clears the pending one
func (t *Transcript) AddFinal(segment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if segment = strings.TrimSpace(segment); segment != "" {
		t.final = append(t.final, segment)
	}
	t.pending = ""
}

// SetPending records the latest interim segment
func (t *Transcript) SetPending(segment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = strings.TrimSpace(segment)
}

// Text joins the final segments and any pending tail
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	parts := t.final
	if t.pending != "" {
		parts = append(parts[:len(parts):len(parts)], t.pending)
	}
	return strings.Join(parts, " ")
}
