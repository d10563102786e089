// Package capture supplies microphone frames to the audio pipeline.
//
// A Source pushes float32 mono frames to a FrameHandler from its own
// execution context. Handlers run on the device callback thread and must
// only perform a non-blocking hand-off such as audio.Pipeline.Push.
package capture
