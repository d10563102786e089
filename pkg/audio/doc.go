// Package audio converts captured float audio into 16 kHz mono PCM16 chunks.
// It holds the box-filter resampler, the 120 ms chunker with its carry buffer,
// the pipeline goroutine that feeds chunks to the transport, and an optional
// WAV recorder for sent turns.
package audio
