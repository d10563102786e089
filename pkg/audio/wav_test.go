package audio

import (
	"os"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestTurnRecorderWritesWav(t *testing.T) {
	dir := t.TempDir()
	recorder, err := NewTurnRecorder(dir)
	if err != nil {
		t.Fatalf("NewTurnRecorder failed: %v", err)
	}
	if !recorder.Enabled() {
		t.Fatal("Recorder with a directory should be enabled")
	}

	if err := recorder.Begin("session", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := recorder.Write(make([]int16, 1920)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := recorder.Write([]int16{100, -100, 200}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	path, samples, err := recorder.End()
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if samples != 1923 {
		t.Errorf("Expected 1923 samples, got %d", samples)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("Recorded file is not a valid WAV")
	}
	if dec.SampleRate != TargetSampleRate {
		t.Errorf("Expected sample rate %d, got %d", TargetSampleRate, dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("Expected mono, got %d channels", dec.NumChans)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(buf.Data) != 1923 {
		t.Errorf("Expected 1923 decoded samples, got %d", len(buf.Data))
	}
	if buf.Data[1921] != -100 {
		t.Errorf("Expected sample -100, got %d", buf.Data[1921])
	}
}

func TestTurnRecorderDisabled(t *testing.T) {
	recorder, err := NewTurnRecorder("")
	if err != nil {
		t.Fatalf("NewTurnRecorder failed: %v", err)
	}
	if recorder.Enabled() {
		t.Fatal("Recorder without a directory should be disabled")
	}
	if err := recorder.Begin("session", time.Now()); err != nil {
		t.Errorf("Begin on disabled recorder: %v", err)
	}
	if err := recorder.Write([]int16{1}); err != nil {
		t.Errorf("Write on disabled recorder: %v", err)
	}
	if path, _, err := recorder.End(); path != "" || err != nil {
		t.Errorf("End on disabled recorder returned %q, %v", path, err)
	}
}
