package session

import (
	"fmt"

	"example.com/voice_practice/pkg/protocol"
)

// Transition applies one event to a state. It performs no I/O: every side
// effect is returned as a Command for the runner to execute in order.
// Invalid triggers leave the state unchanged and yield at most a status notice.
func Transition(s State, ev Event) (State, []Command) {
	switch e := ev.(type) {
	case StartPractice:
		return startPractice(s, e)
	case ChannelOpened:
		return channelOpened(s)
	case ChannelFailed:
		return channelFailed(s, e)
	case ChannelError:
		return s, []Command{status(ToneError, "Channel error, please retry later.")}
	case ChannelClosed:
		return channelClosed(s, e)
	case Disconnect:
		return disconnect(s)
	case StartRecording:
		return startRecording(s)
	case CaptureReady:
		return captureReady(s, e)
	case CaptureFailed:
		return captureFailed(s, e)
	case StopRecording:
		return stopRecording(s)
	case ChangePreference:
		return changePreference(s, e)
	case RequestPause:
		return requestPause(s, e)
	case MessageReceived:
		return messageReceived(s, e.Message)
	default:
		return s, nil
	}
}

func status(tone Tone, format string, args ...any) Command {
	return ShowStatus{Text: fmt.Sprintf(format, args...), Tone: tone}
}

func startPractice(s State, e StartPractice) (State, []Command) {
	switch {
	case s.Connecting:
		return s, []Command{status(ToneWarning, "Already connecting, please wait.")}
	case s.CanStop():
		return s, []Command{status(ToneWarning, "Stop recording before restarting practice.")}
	}

	if e.Theme != "" {
		s.Theme = e.Theme
	}
	if e.Scenario != "" {
		s.Scenario = e.Scenario
	}

	if s.Connected {
		return requestSentence(s)
	}
	s.Connecting = true
	return s, []Command{
		status(ToneInfo, "Connecting to the practice service..."),
		OpenChannel{},
	}
}

// requestSentence asks for a new practice sentence and blocks recording
// until it arrives
func requestSentence(s State) (State, []Command) {
	s.AwaitingSentence = true
	s.PracticeReady = false
	s.AwaitingFeedback = false
	return s, []Command{
		SendControl{Message: protocol.StartPractice(s.Theme, s.Scenario)},
		status(ToneInfo, "Requesting a practice sentence..."),
		ShowUserMessage{Text: fmt.Sprintf("Requested practice sentence: %s - %s", s.Theme, s.Scenario)},
	}
}

func channelOpened(s State) (State, []Command) {
	if !s.Connecting || s.Connected {
		// The attempt was cancelled or already superseded
		return s, []Command{CloseChannel{Reason: "connect cancelled"}}
	}
	s.Connecting = false
	s.Connected = true
	s, cmds := requestSentence(s)
	return s, append([]Command{status(ToneInfo, "Connected, requesting a practice sentence.")}, cmds...)
}

func channelFailed(s State, e ChannelFailed) (State, []Command) {
	if !s.Connecting {
		return s, nil
	}
	s.Connecting = false
	return s, []Command{status(ToneError, "Connection failed: %v", e.Err)}
}

func channelClosed(s State, e ChannelClosed) (State, []Command) {
	if !s.Connected && !s.Connecting {
		return s, nil
	}
	wasRecording := s.Recording
	next := InitialState(s.Theme, s.Scenario)

	var cmds []Command
	if wasRecording {
		// The server is gone: drain locally, solicit no feedback
		cmds = append(cmds,
			EndCapture{},
			FlushAudio{},
			ShowUserMessage{Text: "Recording stopped, the connection closed before feedback."},
		)
	}
	text := "Connection closed."
	if e.Reason != "" {
		text = fmt.Sprintf("Connection closed: %s.", e.Reason)
	}
	cmds = append(cmds, status(ToneInfo, "%s", text))
	return next, cmds
}

func disconnect(s State) (State, []Command) {
	switch {
	case s.Connected:
		// ChannelClosed performs the reset
		return s, []Command{CloseChannel{Reason: "client disconnect"}}
	case s.Connecting:
		s.Connecting = false
		return s, []Command{status(ToneInfo, "Connection attempt cancelled.")}
	default:
		return s, []Command{status(ToneInfo, "Not connected.")}
	}
}

// recordRejection explains why a recording cannot start, or returns "" when it can
func recordRejection(s State) string {
	switch {
	case s.Recording || s.CaptureStarting:
		return "Already recording."
	case s.Paused && s.Connected:
		return "The session is paused, resume it first."
	case !s.Connected:
		return "Start practice first."
	case s.AwaitingFeedback:
		return "Still waiting for feedback on the last attempt."
	case !s.PracticeReady:
		return "Get a practice sentence before recording."
	}
	return ""
}

func startRecording(s State) (State, []Command) {
	if reason := recordRejection(s); reason != "" || !s.CanRecord() {
		if reason == "" {
			reason = "Recording is not available right now."
		}
		return s, []Command{status(ToneWarning, "%s", reason)}
	}
	s.CaptureStarting = true
	return s, []Command{InitCapture{}}
}

func captureReady(s State, e CaptureReady) (State, []Command) {
	if !s.CaptureStarting {
		return s, nil
	}
	s.CaptureStarting = false
	// Re-validate: the session may have changed while the device was opening
	if !s.CanRecord() {
		return s, []Command{status(ToneWarning, "Recording cancelled, the session changed.")}
	}
	s.Recording = true
	return s, []Command{
		BeginTurn{SampleRate: e.SampleRate},
		status(ToneInfo, "Recording, start speaking!"),
	}
}

func captureFailed(s State, e CaptureFailed) (State, []Command) {
	if !s.CaptureStarting {
		return s, nil
	}
	s.CaptureStarting = false
	return s, []Command{status(ToneError, "Microphone access failed: %v", e.Err)}
}

func stopRecording(s State) (State, []Command) {
	if !s.Recording {
		if s.CaptureStarting {
			s.CaptureStarting = false
			return s, []Command{status(ToneInfo, "Recording cancelled.")}
		}
		return s, []Command{status(ToneWarning, "Not recording.")}
	}

	s.Recording = false
	cmds := []Command{EndCapture{}, FlushAudio{}}
	if s.Connected {
		s.AwaitingFeedback = true
		cmds = append(cmds,
			SendControl{Message: protocol.EndTurn()},
			status(ToneInfo, "Audio sent, waiting for feedback."),
		)
	}
	cmds = append(cmds, ShowUserMessage{Text: "Audio sent, waiting for feedback."})
	return s, cmds
}

func changePreference(s State, e ChangePreference) (State, []Command) {
	if !s.Connected {
		return s, []Command{status(ToneWarning, "Start practice and connect first.")}
	}
	if e.Theme != "" {
		s.Theme = e.Theme
	}
	if e.Scenario != "" {
		s.Scenario = e.Scenario
	}
	return s, []Command{
		SendControl{Message: protocol.Preference(s.Theme, s.Scenario)},
		ShowUserMessage{Text: fmt.Sprintf("Preference updated: %s - %s", s.Theme, s.Scenario)},
		status(ToneInfo, "Preference sent, it applies to the rest of the conversation."),
	}
}

func requestPause(s State, e RequestPause) (State, []Command) {
	if !s.Connected {
		return s, []Command{status(ToneWarning, "Start practice and connect first.")}
	}
	action, verb := protocol.ActionResume, "Resume"
	if e.Paused {
		action, verb = protocol.ActionPause, "Pause"
	}
	return s, []Command{
		SendControl{Message: protocol.Control(action)},
		status(ToneInfo, "%s requested.", verb),
	}
}

func messageReceived(s State, msg protocol.Inbound) (State, []Command) {
	if !s.Connected && !s.Connecting {
		return s, nil
	}

	switch msg.Type {
	case protocol.TypeStatus:
		return s, []Command{status(ToneInfo, "%s", statusText(msg.Message))}

	case protocol.TypePartialResponse:
		return s, []Command{AppendAssistant{Text: msg.TextOr("")}}

	case protocol.TypeFinalResponse:
		return finalResponse(s, msg)

	case protocol.TypePauseState:
		return setPaused(s, msg.IsPaused(), false)

	case protocol.TypeError:
		text := msg.Message
		if text == "" {
			text = "Unknown error."
		}
		return s, []Command{status(ToneError, "%s", text)}

	case protocol.TypeGeminiDisconnected:
		s.PracticeReady = false
		s.AwaitingFeedback = false
		s.AwaitingSentence = false
		text := "Lost the link to the AI tutor, restart practice."
		if msg.Code != 0 || msg.Reason != "" {
			text = fmt.Sprintf("Lost the link to the AI tutor (%d %s), restart practice.", msg.Code, msg.Reason)
		}
		return s, []Command{status(ToneWarning, "%s", text)}
	}
	return s, nil
}

func statusText(message string) string {
	switch message {
	case protocol.StatusConnected:
		return "Connected to the service, please wait."
	case protocol.StatusVoiceEnabled:
		return "AI voice enabled, pronunciation examples will be played."
	case protocol.StatusVoiceDisabled:
		return "AI voice unavailable, feedback will be text only."
	default:
		return message
	}
}

func finalResponse(s State, msg protocol.Inbound) (State, []Command) {
	cmds := []Command{FinalizeAssistant{Text: msg.Text}}
	if msg.Score != nil {
		cmds = append(cmds, ShowScore{Score: *msg.Score})
	}
	if msg.Paused != nil {
		var pauseCmds []Command
		s, pauseCmds = setPaused(s, *msg.Paused, true)
		cmds = append(cmds, pauseCmds...)
	}
	if msg.Audio != "" {
		cmds = append(cmds, PlayAudio{Data: msg.Audio})
	}

	switch {
	case s.AwaitingSentence:
		s.AwaitingSentence = false
		s.PracticeReady = true
		s.AwaitingFeedback = false
		cmds = append(cmds, status(ToneInfo, "Practice sentence ready, start recording to repeat it."))
	case s.AwaitingFeedback:
		s.AwaitingFeedback = false
		cmds = append(cmds, status(ToneInfo, "Feedback ready, keep practicing or restart."))
	}
	return s, cmds
}

// setPaused updates the pause flag. Recording and awaiting flags are left
// alone; captured frames are held while paused.
func setPaused(s State, paused, announce bool) (State, []Command) {
	changed := s.Paused != paused
	s.Paused = paused

	var cmds []Command
	if changed && s.Recording {
		cmds = append(cmds, HoldAudio{Held: paused})
	}
	if announce || changed {
		if paused {
			cmds = append(cmds, status(ToneInfo, "AI paused, take a break."))
		} else {
			cmds = append(cmds, status(ToneInfo, "AI resumed, continue practicing."))
		}
	}
	return s, cmds
}
