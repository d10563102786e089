package session

import "example.com/voice_practice/pkg/protocol"

// Event is an input to Transition
type Event interface {
	event()
}

// User actions

// StartPractice connects if needed and requests a practice sentence.
// Empty fields keep the current theme or scenario.
type StartPractice struct {
	Theme    string
	Scenario string
}

// StartRecording begins a recorded attempt
type StartRecording struct{}

// StopRecording ends the current attempt and asks for feedback
type StopRecording struct{}

// ChangePreference updates the practice focus
type ChangePreference struct {
	Theme    string
	Scenario string
}

// RequestPause asks the service to pause or resume. The paused flag only
// changes once the service answers with its pause state.
type RequestPause struct {
	Paused bool
}

// Disconnect closes the channel
type Disconnect struct{}

// Transport results

// ChannelOpened reports a successful dial
type ChannelOpened struct{}

// ChannelFailed reports a failed dial
type ChannelFailed struct {
	Err error
}

// ChannelClosed reports that the channel closed for any cause
type ChannelClosed struct {
	Reason string
}

// ChannelError reports a channel error; a ChannelClosed follows
type ChannelError struct {
	Err error
}

// MessageReceived carries one decoded inbound control message
type MessageReceived struct {
	Message protocol.Inbound
}

// Capture results

// CaptureReady reports that the input device is initialized
type CaptureReady struct {
	SampleRate int
}

// CaptureFailed reports that the input device could not be initialized
type CaptureFailed struct {
	Err error
}

func (StartPractice) event()    {}
func (StartRecording) event()   {}
func (StopRecording) event()    {}
func (ChangePreference) event() {}
func (RequestPause) event()     {}
func (Disconnect) event()       {}
func (ChannelOpened) event()    {}
func (ChannelFailed) event()    {}
func (ChannelClosed) event()    {}
func (ChannelError) event()     {}
func (MessageReceived) event()  {}
func (CaptureReady) event()     {}
func (CaptureFailed) event()    {}
