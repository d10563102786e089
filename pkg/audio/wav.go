package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// TurnRecorder writes each sent turn to its own 16 kHz mono WAV file.
// A recorder with an empty directory is disabled and every call is a no-op.
type TurnRecorder struct {
	dir     string
	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	path    string
	samples int
}

// NewTurnRecorder creates a recorder writing into dir
func NewTurnRecorder(dir string) (*TurnRecorder, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recordings dir %s: %w", dir, err)
		}
	}
	return &TurnRecorder{dir: dir}, nil
}

// Enabled reports whether turns are written to disk
func (r *TurnRecorder) Enabled() bool {
	return r != nil && r.dir != ""
}

// Begin opens a new WAV file named after the session and start time
func (r *TurnRecorder) Begin(sessionID string, at time.Time) error {
	if !r.Enabled() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		r.closeLocked()
	}

	name := fmt.Sprintf("%s_%s.wav", sessionID, at.Format("20060102T150405.000"))
	path := filepath.Join(r.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	r.file = f
	r.path = path
	r.samples = 0
	r.encoder = wav.NewEncoder(f, TargetSampleRate, 16, 1, 1)
	return nil
}

// Write appends one chunk to the current turn
func (r *TurnRecorder) Write(pcm []int16) error {
	if !r.Enabled() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return nil
	}

	data := make([]int, len(pcm))
	for i, s := range pcm {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: TargetSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := r.encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	r.samples += len(pcm)
	return nil
}

// End finalizes the current file and returns its path and sample count
func (r *TurnRecorder) End() (string, int, error) {
	if !r.Enabled() {
		return "", 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return "", 0, nil
	}
	path, samples := r.path, r.samples
	err := r.closeLocked()
	return path, samples, err
}

func (r *TurnRecorder) closeLocked() error {
	var err error
	if r.encoder != nil {
		if cerr := r.encoder.Close(); cerr != nil {
			err = fmt.Errorf("failed to finalize wav: %w", cerr)
		}
	}
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	r.file = nil
	r.encoder = nil
	r.path = ""
	r.samples = 0
	return err
}
