package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// TargetSampleRate is the rate every chunk is sent at
	TargetSampleRate = 16000

	// ChunkDuration is the nominal duration of one sent chunk
	ChunkDuration = 120 * time.Millisecond
)

// Frame is one delivery of float samples from the capture source
type Frame struct {
	Samples    []float32
	SampleRate int
}

// Resample converts float samples in [-1, 1] at inputRate into PCM16 at targetRate.
// Downsampling averages each input window (box filter); no low-pass is applied.
func Resample(buffer []float32, inputRate, targetRate int) []int16 {
	if inputRate == targetRate {
		out := make([]int16, len(buffer))
		for i, s := range buffer {
			out[i] = toPCM16(float64(s))
		}
		return out
	}

	ratio := float64(inputRate) / float64(targetRate)
	newLength := int(math.Floor(float64(len(buffer)) / ratio))
	if newLength <= 0 {
		return []int16{}
	}
	out := make([]int16, newLength)

	offsetBuffer := 0
	for i := 0; i < newLength; i++ {
		nextOffset := roundHalfUp(float64(i+1) * ratio)

		var accum float64
		count := 0
		for j := offsetBuffer; j < nextOffset && j < len(buffer); j++ {
			accum += float64(buffer[j])
			count++
		}

		average := 0.0
		if count > 0 {
			average = accum / float64(count)
		}
		out[i] = toPCM16(average)
		offsetBuffer = nextOffset
	}

	return out
}

// toPCM16 clamps and scales one sample. Negative values use 0x8000 and
// non-negative values 0x7fff so +1.0 cannot overflow.
func toPCM16(s float64) int16 {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7fff)
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// WindowSize returns how many input samples make up one chunk at inputRate
func WindowSize(inputRate int) int {
	return int(math.Floor(float64(inputRate) / 1000 * float64(ChunkDuration/time.Millisecond)))
}

// PCM16Bytes encodes samples as little-endian bytes for the wire
func PCM16Bytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, sample := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// PCM16FromBytes decodes little-endian PCM16 bytes; a trailing odd byte is ignored
func PCM16FromBytes(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}
