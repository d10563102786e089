package audio

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrPipelineStopped is returned when the pipeline goroutine is no longer running
var ErrPipelineStopped = errors.New("audio pipeline stopped")

// ChunkSink receives every chunk the pipeline emits, in order
type ChunkSink func(pcm []int16, final bool)

// PipelineConfig holds pipeline settings
type PipelineConfig struct {
	QueueSize int // frames buffered between capture and chunker
	Sink      ChunkSink
	OnDrop    func() // called when a frame is dropped because the queue is full
	Logger    zerolog.Logger
}

type pipelineEvent struct {
	turn  uint64
	frame []float32
	rate  int           // > 0 starts a turn at this input rate
	ack   chan struct{} // non-nil marks a flush
}

// Pipeline moves captured frames through a Chunker on its own goroutine.
// Push is safe to call from a real-time audio callback: it never blocks.
type Pipeline struct {
	config  PipelineConfig
	events  chan pipelineEvent
	chunker *Chunker
	active  atomic.Bool
	held    atomic.Bool
	turn    atomic.Uint64
	dropped atomic.Uint64
	done    chan struct{}
}

// NewPipeline creates a pipeline; call Run to start processing
func NewPipeline(config PipelineConfig) *Pipeline {
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.Sink == nil {
		config.Sink = func([]int16, bool) {}
	}
	return &Pipeline{
		config:  config,
		events:  make(chan pipelineEvent, config.QueueSize),
		chunker: NewChunker(TargetSampleRate),
		done:    make(chan struct{}),
	}
}

// Run processes frames until ctx is cancelled
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.done)

	// Frames tagged with a turn at or below flushed were captured before the
	// last stop and are discarded.
	var flushed uint64
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			switch {
			case ev.ack != nil:
				if pcm := p.chunker.Flush(); pcm != nil {
					p.config.Sink(pcm, true)
				}
				flushed = ev.turn
				close(ev.ack)
			case ev.rate > 0:
				p.chunker.Reset(ev.rate)
				p.config.Logger.Debug().
					Int("input_rate", ev.rate).
					Int("window_size", p.chunker.WindowSize()).
					Msg("pipeline: turn started")
			default:
				if ev.turn <= flushed {
					continue
				}
				for _, pcm := range p.chunker.Push(ev.frame) {
					p.config.Sink(pcm, false)
				}
			}
		}
	}
}

// Begin opens the gate for a new turn captured at inputRate
func (p *Pipeline) Begin(ctx context.Context, inputRate int) error {
	turn := p.turn.Add(1)
	select {
	case p.events <- pipelineEvent{turn: turn, rate: inputRate}:
	case <-p.done:
		return ErrPipelineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	p.held.Store(false)
	p.active.Store(true)
	return nil
}

// End closes the gate; frames pushed afterwards are ignored
func (p *Pipeline) End() {
	p.active.Store(false)
}

// Hold drops incoming frames while held is true without ending the turn
func (p *Pipeline) Hold(held bool) {
	p.held.Store(held)
}

// Active reports whether frames are currently accepted
func (p *Pipeline) Active() bool {
	return p.active.Load() && !p.held.Load()
}

// Push hands one captured frame to the pipeline without blocking.
// It returns false if the frame was not accepted.
func (p *Pipeline) Push(samples []float32) bool {
	turn := p.turn.Load()
	if !p.Active() {
		return false
	}
	select {
	case p.events <- pipelineEvent{turn: turn, frame: samples}:
		return true
	default:
		p.dropped.Add(1)
		if p.config.OnDrop != nil {
			p.config.OnDrop()
		}
		return false
	}
}

// Flush drains the carry buffer behind every frame already queued and waits
// until the final partial chunk has been handed to the sink.
func (p *Pipeline) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case p.events <- pipelineEvent{turn: p.turn.Load(), ack: ack}:
	case <-p.done:
		return ErrPipelineStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-p.done:
		return ErrPipelineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many frames were dropped because the queue was full
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}
