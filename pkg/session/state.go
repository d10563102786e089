package session

// Phase is the externally visible session phase derived from State flags
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseAwaitingSentence
	PhaseReady
	PhaseRecording
	PhaseAwaitingFeedback
	PhasePaused
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseAwaitingSentence:
		return "awaiting-sentence"
	case PhaseReady:
		return "ready"
	case PhaseRecording:
		return "recording"
	case PhaseAwaitingFeedback:
		return "awaiting-feedback"
	case PhasePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// State is the single record describing a session. It is only changed by
// Transition.
type State struct {
	Connecting       bool
	Connected        bool
	Recording        bool
	CaptureStarting  bool // InitCapture issued, waiting for the device
	Paused           bool
	PracticeReady    bool
	AwaitingSentence bool
	AwaitingFeedback bool
	Theme            string
	Scenario         string
}

// InitialState returns a disconnected state with the given practice focus
func InitialState(theme, scenario string) State {
	return State{Theme: theme, Scenario: scenario}
}

// Phase derives the session phase. Recording wins over Paused, which wins
// over the awaiting flags, so at most one of them drives record enablement.
func (s State) Phase() Phase {
	switch {
	case !s.Connected && s.Connecting:
		return PhaseConnecting
	case !s.Connected:
		return PhaseDisconnected
	case s.Recording:
		return PhaseRecording
	case s.Paused:
		return PhasePaused
	case s.AwaitingSentence:
		return PhaseAwaitingSentence
	case s.AwaitingFeedback:
		return PhaseAwaitingFeedback
	case s.PracticeReady:
		return PhaseReady
	default:
		return PhaseConnected
	}
}

// CanRecord reports whether a recording may start now
func (s State) CanRecord() bool {
	return s.Phase() == PhaseReady && !s.CaptureStarting
}

// CanStop reports whether a recording is in progress or starting
func (s State) CanStop() bool {
	return s.Recording || s.CaptureStarting
}
