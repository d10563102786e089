package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create wav: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to finalize wav: %v", err)
	}
	f.Close()
	return path
}

func TestWAVSourceDeliversWholeFile(t *testing.T) {
	data := make([]int, 5000)
	for i := range data {
		data[i] = (i % 100) * 100
	}
	path := writeTestWAV(t, 48000, 1, data)

	var mu sync.Mutex
	var frames [][]float32
	ended := make(chan struct{})
	src := NewWAVSource(WAVConfig{
		Path:            path,
		FramesPerBuffer: 2000,
		Handler: func(samples []float32) {
			mu.Lock()
			frames = append(frames, samples)
			mu.Unlock()
		},
		OnEnd: func() { close(ended) },
	})

	if err := src.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := src.Init(context.Background()); err != nil {
		t.Fatalf("Second Init should be a no-op, got %v", err)
	}
	if src.SampleRate() != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", src.SampleRate())
	}

	if err := src.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("File was not fully delivered")
	}
	src.Suspend()

	mu.Lock()
	defer mu.Unlock()
	sizes := []int{2000, 2000, 1000}
	if len(frames) != len(sizes) {
		t.Fatalf("Expected %d frames, got %d", len(sizes), len(frames))
	}
	for i, size := range sizes {
		if len(frames[i]) != size {
			t.Errorf("Frame %d: expected %d samples, got %d", i, size, len(frames[i]))
		}
	}
	if got, want := frames[0][1], float32(100)/32768; got != want {
		t.Errorf("Expected sample %v, got %v", want, got)
	}
}

func TestWAVSourceMixesDownToMono(t *testing.T) {
	path := writeTestWAV(t, 16000, 2, []int{1000, 3000, -2000, -4000})

	var got []float32
	ended := make(chan struct{})
	src := NewWAVSource(WAVConfig{
		Path:    path,
		Handler: func(samples []float32) { got = append(got, samples...) },
		OnEnd:   func() { close(ended) },
	})
	if err := src.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	src.Resume()
	<-ended

	expected := []float32{2000.0 / 32768, -3000.0 / 32768}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}

func TestWAVSourceInitFailure(t *testing.T) {
	src := NewWAVSource(WAVConfig{Path: filepath.Join(t.TempDir(), "missing.wav")})
	err := src.Init(context.Background())
	if !errors.Is(err, ErrInitFailed) {
		t.Errorf("Expected ErrInitFailed, got %v", err)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	os.WriteFile(garbage, []byte("not a wav file"), 0o644)
	src = NewWAVSource(WAVConfig{Path: garbage})
	if err := src.Init(context.Background()); !errors.Is(err, ErrInitFailed) {
		t.Errorf("Expected ErrInitFailed for invalid file, got %v", err)
	}
}

func TestWAVSourceResumeBeforeInit(t *testing.T) {
	src := NewWAVSource(WAVConfig{Path: "unused.wav"})
	if err := src.Resume(); err == nil {
		t.Error("Expected error resuming an uninitialized source")
	}
	if err := src.Suspend(); err != nil {
		t.Errorf("Suspend of an idle source should be a no-op, got %v", err)
	}
}

var _ Source = (*WAVSource)(nil)
var _ Source = (*PortAudioSource)(nil)
