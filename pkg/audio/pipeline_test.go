package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type collectedChunk struct {
	pcm   []int16
	final bool
}

type chunkCollector struct {
	mu     sync.Mutex
	chunks []collectedChunk
}

func (c *chunkCollector) sink(pcm []int16, final bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, collectedChunk{pcm: pcm, final: final})
}

func (c *chunkCollector) snapshot() []collectedChunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]collectedChunk(nil), c.chunks...)
}

func startPipeline(t *testing.T, queueSize int) (*Pipeline, *chunkCollector) {
	t.Helper()
	collector := &chunkCollector{}
	p := NewPipeline(PipelineConfig{
		QueueSize: queueSize,
		Sink:      collector.sink,
		Logger:    zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	t.Cleanup(cancel)
	return p, collector
}

func TestPipelineFlushDrainsQueuedFrames(t *testing.T) {
	p, collector := startPipeline(t, 16)
	ctx := context.Background()

	if err := p.Begin(ctx, 48000); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if !p.Push(make([]float32, 2000)) {
		t.Fatal("Push of first frame rejected")
	}
	if !p.Push(make([]float32, 3000)) {
		t.Fatal("Push of second frame rejected")
	}

	p.End()
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	chunks := collector.snapshot()
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if !chunks[0].final {
		t.Error("Flush chunk should be marked final")
	}
	if len(chunks[0].pcm) != 1666 {
		t.Errorf("Expected 1666 samples, got %d", len(chunks[0].pcm))
	}
}

func TestPipelineEmitsInOrder(t *testing.T) {
	p, collector := startPipeline(t, 64)
	ctx := context.Background()

	if err := p.Begin(ctx, 16000); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		frame := make([]float32, 1920)
		for j := range frame {
			frame[j] = float32(i) / 10
		}
		p.Push(frame)
	}
	p.End()
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	chunks := collector.snapshot()
	if len(chunks) != 5 {
		t.Fatalf("Expected 5 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		expected := toPCM16(float64(float32(i) / 10))
		if chunk.pcm[0] != expected {
			t.Errorf("Chunk %d: expected first sample %d, got %d", i, expected, chunk.pcm[0])
		}
		if chunk.final {
			t.Errorf("Chunk %d: full window should not be marked final", i)
		}
	}
}

func TestPipelineRejectsFramesWhenInactive(t *testing.T) {
	p, collector := startPipeline(t, 4)

	if p.Push(make([]float32, 100)) {
		t.Error("Push should be rejected before Begin")
	}
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(collector.snapshot()) != 0 {
		t.Error("Empty flush should emit nothing")
	}
}

func TestPipelineDropsWhenQueueFull(t *testing.T) {
	drops := 0
	p := NewPipeline(PipelineConfig{
		QueueSize: 1,
		OnDrop:    func() { drops++ },
		Logger:    zerolog.Nop(),
	})
	// Not running: the begin event fills the queue
	p.active.Store(true)
	p.events <- pipelineEvent{turn: 1, rate: 48000}

	if p.Push(make([]float32, 10)) {
		t.Error("Push should fail when the queue is full")
	}
	if p.Dropped() != 1 || drops != 1 {
		t.Errorf("Expected 1 dropped frame, got %d (hook %d)", p.Dropped(), drops)
	}
}

func TestPipelineFlushAfterStop(t *testing.T) {
	p := NewPipeline(PipelineConfig{QueueSize: 1, Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	cancel()

	select {
	case <-p.done:
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop")
	}

	if err := p.Flush(context.Background()); err != ErrPipelineStopped {
		t.Errorf("Expected ErrPipelineStopped, got %v", err)
	}
}

func TestPipelineHoldDropsFramesWithoutEndingTurn(t *testing.T) {
	p, collector := startPipeline(t, 16)
	ctx := context.Background()

	if err := p.Begin(ctx, 16000); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	p.Hold(true)
	if p.Push(make([]float32, 1920)) {
		t.Error("Push should be rejected while held")
	}
	p.Hold(false)
	if !p.Push(make([]float32, 1920)) {
		t.Error("Push should be accepted after release")
	}
	p.End()
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if chunks := collector.snapshot(); len(chunks) != 1 {
		t.Errorf("Expected 1 chunk, got %d", len(chunks))
	}
}
