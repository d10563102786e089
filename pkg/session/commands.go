package session

import "example.com/voice_practice/pkg/protocol"

// Tone classifies a status notice
type Tone int

const (
	ToneInfo Tone = iota
	ToneWarning
	ToneError
)

func (t Tone) String() string {
	switch t {
	case ToneWarning:
		return "warning"
	case ToneError:
		return "error"
	default:
		return "info"
	}
}

// Command is a side effect requested by Transition
type Command interface {
	command()
}

// OpenChannel dials the transport; the result arrives as ChannelOpened or ChannelFailed
type OpenChannel struct{}

// CloseChannel closes the transport with a reason
type CloseChannel struct {
	Reason string
}

// SendControl sends one control message
type SendControl struct {
	Message protocol.Outbound
}

// InitCapture initializes the input device; the result arrives as
// CaptureReady or CaptureFailed
type InitCapture struct{}

// BeginTurn starts a new turn in the audio pipeline and resumes the device
type BeginTurn struct {
	SampleRate int
}

// EndCapture suspends the device and closes the pipeline gate
type EndCapture struct{}

// FlushAudio drains the carry buffer and waits for the final chunk
type FlushAudio struct{}

// HoldAudio drops captured frames while Held is true
type HoldAudio struct {
	Held bool
}

// PlayAudio forwards base64 synthesized speech to the playback sink
type PlayAudio struct {
	Data string
}

// ShowStatus replaces the status line
type ShowStatus struct {
	Text string
	Tone Tone
}

// AppendAssistant appends a fragment to the in-progress assistant message
type AppendAssistant struct {
	Text string
}

// FinalizeAssistant completes the in-progress assistant message. A non-nil
// Text replaces the streamed fragments.
type FinalizeAssistant struct {
	Text *string
}

// ShowUserMessage adds a user entry to the conversation log
type ShowUserMessage struct {
	Text string
}

// ShowScore displays a pronunciation score
type ShowScore struct {
	Score float64
}

func (OpenChannel) command()       {}
func (CloseChannel) command()      {}
func (SendControl) command()       {}
func (InitCapture) command()       {}
func (BeginTurn) command()         {}
func (EndCapture) command()        {}
func (FlushAudio) command()        {}
func (HoldAudio) command()         {}
func (PlayAudio) command()         {}
func (ShowStatus) command()        {}
func (AppendAssistant) command()   {}
func (FinalizeAssistant) command() {}
func (ShowUserMessage) command()   {}
func (ShowScore) command()         {}
