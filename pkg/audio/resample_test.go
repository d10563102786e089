package audio

import (
	"math"
	"testing"
)

func TestResampleSameRateScaling(t *testing.T) {
	input := []float32{1.0, -1.0, 0.5, -0.5, 2.0, -2.0, 0}
	expected := []int16{32767, -32768, 16383, -16384, 32767, -32768, 0}

	got := Resample(input, 16000, 16000)
	if len(got) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestResampleOutputLength(t *testing.T) {
	tests := []struct {
		name       string
		inputLen   int
		inputRate  int
		targetRate int
		expected   int
	}{
		{"48k one window", 5760, 48000, 16000, 1920},
		{"48k partial", 5000, 48000, 16000, 1666},
		{"44.1k", 1000, 44100, 16000, 362},
		{"32k", 7, 32000, 16000, 3},
		{"too short", 2, 48000, 16000, 0},
		{"empty", 0, 48000, 16000, 0},
		{"same rate", 333, 16000, 16000, 333},
		{"upsample", 100, 8000, 16000, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resample(make([]float32, tt.inputLen), tt.inputRate, tt.targetRate)
			if len(got) != tt.expected {
				t.Errorf("Expected %d samples, got %d", tt.expected, len(got))
			}
		})
	}
}

func TestResampleLengthLaw(t *testing.T) {
	rates := []int{8000, 22050, 24000, 32000, 44100, 48000, 96000}
	for _, rate := range rates {
		ratio := float64(rate) / float64(TargetSampleRate)
		for n := 0; n < 3000; n += 37 {
			want := int(math.Floor(float64(n) / ratio))
			if rate == TargetSampleRate {
				want = n
			}
			if got := len(Resample(make([]float32, n), rate, TargetSampleRate)); got != want {
				t.Errorf("rate %d, n %d: expected %d samples, got %d", rate, n, want, got)
			}
		}
	}
}

func TestResampleAveragesWindows(t *testing.T) {
	input := []float32{0.5, 0.5, -0.5, -0.5, 0.25, 0.75}
	expected := []int16{16383, -16384, 16383}

	got := Resample(input, 32000, 16000)
	if len(got) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestResampleClampsAverage(t *testing.T) {
	input := []float32{3, 3, 3, -3, -3, -3}
	got := Resample(input, 48000, 16000)
	if len(got) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(got))
	}
	if got[0] != 32767 {
		t.Errorf("Expected 32767, got %d", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("Expected -32768, got %d", got[1])
	}
}

func TestResampleUnevenRatioWindows(t *testing.T) {
	// 44.1k -> 16k: ratio 2.75625, windows [0,3) [3,6) [6,8) ...
	input := make([]float32, 11)
	for i := range input {
		input[i] = float32(i) / 10
	}
	got := Resample(input, 44100, 16000)
	if len(got) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(got))
	}

	mean := func(lo, hi int) int16 {
		var sum float64
		for i := lo; i < hi; i++ {
			sum += float64(input[i])
		}
		return int16(sum / float64(hi-lo) * 0x7fff)
	}
	expected := []int16{mean(0, 3), mean(3, 6), mean(6, 8)}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestWindowSize(t *testing.T) {
	tests := map[int]int{
		16000: 1920,
		44100: 5292,
		48000: 5760,
		8000:  960,
	}
	for rate, expected := range tests {
		if got := WindowSize(rate); got != expected {
			t.Errorf("WindowSize(%d): expected %d, got %d", rate, expected, got)
		}
	}
}

func TestPCM16BytesLittleEndian(t *testing.T) {
	pcm := []int16{1, -1, 0x1234, -32768}
	data := PCM16Bytes(pcm)
	expected := []byte{0x01, 0x00, 0xff, 0xff, 0x34, 0x12, 0x00, 0x80}
	if len(data) != len(expected) {
		t.Fatalf("Expected %d bytes, got %d", len(expected), len(data))
	}
	for i := range expected {
		if data[i] != expected[i] {
			t.Errorf("Byte %d: expected %#x, got %#x", i, expected[i], data[i])
		}
	}

	back := PCM16FromBytes(append(data, 0x7f))
	if len(back) != len(pcm) {
		t.Fatalf("Expected %d samples back, got %d", len(pcm), len(back))
	}
	for i := range pcm {
		if back[i] != pcm[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, pcm[i], back[i])
		}
	}
}
