package capture

import (
	"context"
	"errors"
)

// ErrInitFailed wraps every device or file error raised while initializing a source
var ErrInitFailed = errors.New("capture init failed")

// FrameHandler receives one captured frame. The slice is owned by the handler.
type FrameHandler func(samples []float32)

// Source is an input device delivering frames at its native sample rate
type Source interface {
	// Init acquires the device. Calling it again after success is a no-op.
	Init(ctx context.Context) error
	// Resume starts or restarts frame delivery
	Resume() error
	// Suspend pauses frame delivery without releasing the device
	Suspend() error
	// SampleRate is the rate frames are delivered at; valid after Init
	SampleRate() int
	// Close releases the device
	Close() error
}

// DefaultFramesPerBuffer is used when a config leaves the buffer size unset
const DefaultFramesPerBuffer = 1024
