package audio

// Chunker batches float input into fixed-duration PCM16 chunks at TargetSampleRate.
// It keeps a carry buffer of samples that did not fill a whole window yet.
// A Chunker is not safe for concurrent use; Pipeline owns one per session.
type Chunker struct {
	inputRate  int
	targetRate int
	windowSize int
	carry      []float32

	// Statistics
	chunksEmitted  uint64
	samplesEmitted uint64
}

// ChunkerStats represents chunker statistics
type ChunkerStats struct {
	InputRate      int    `json:"input_rate"`
	WindowSize     int    `json:"window_size"`
	Buffered       int    `json:"buffered_samples"`
	ChunksEmitted  uint64 `json:"chunks_emitted"`
	SamplesEmitted uint64 `json:"samples_emitted"`
}

// NewChunker creates a chunker for input captured at inputRate
func NewChunker(inputRate int) *Chunker {
	if inputRate <= 0 {
		inputRate = TargetSampleRate
	}
	return &Chunker{
		inputRate:  inputRate,
		targetRate: TargetSampleRate,
		windowSize: WindowSize(inputRate),
	}
}

// InputRate returns the sample rate the chunker expects
func (c *Chunker) InputRate() int {
	return c.inputRate
}

// WindowSize returns the number of input samples per emitted chunk
func (c *Chunker) WindowSize() int {
	return c.windowSize
}

// Buffered returns the number of samples waiting in the carry buffer
func (c *Chunker) Buffered() int {
	return len(c.carry)
}

// Split appends samples to the carry buffer and slices off every complete
// window, oldest first. The returned windows are the exact pre-resample input.
func (c *Chunker) Split(samples []float32) [][]float32 {
	c.carry = append(c.carry, samples...)
	if c.windowSize <= 0 {
		return nil
	}

	var windows [][]float32
	for len(c.carry) >= c.windowSize {
		window := make([]float32, c.windowSize)
		copy(window, c.carry[:c.windowSize])
		windows = append(windows, window)
		c.carry = c.carry[c.windowSize:]
	}

	// Compact so the backing array does not grow without bound
	if len(windows) > 0 {
		rest := make([]float32, len(c.carry))
		copy(rest, c.carry)
		c.carry = rest
	}

	return windows
}

// Push accumulates samples and returns the resampled chunks that became complete
func (c *Chunker) Push(samples []float32) [][]int16 {
	var chunks [][]int16
	for _, window := range c.Split(samples) {
		if pcm := c.emit(window); pcm != nil {
			chunks = append(chunks, pcm)
		}
	}
	return chunks
}

// Flush resamples whatever is left in the carry buffer and clears it.
// It returns nil when there is nothing to send.
func (c *Chunker) Flush() []int16 {
	if len(c.carry) == 0 {
		return nil
	}
	pcm := c.emit(c.carry)
	c.carry = nil
	return pcm
}

// Reset drops the carry buffer and switches to a new input rate
func (c *Chunker) Reset(inputRate int) {
	if inputRate <= 0 {
		inputRate = TargetSampleRate
	}
	c.inputRate = inputRate
	c.windowSize = WindowSize(inputRate)
	c.carry = nil
}

// GetStats returns current chunker statistics
func (c *Chunker) GetStats() ChunkerStats {
	return ChunkerStats{
		InputRate:      c.inputRate,
		WindowSize:     c.windowSize,
		Buffered:       len(c.carry),
		ChunksEmitted:  c.chunksEmitted,
		SamplesEmitted: c.samplesEmitted,
	}
}

func (c *Chunker) emit(window []float32) []int16 {
	pcm := Resample(window, c.inputRate, c.targetRate)
	if len(pcm) == 0 {
		return nil
	}
	c.chunksEmitted++
	c.samplesEmitted += uint64(len(pcm))
	return pcm
}
