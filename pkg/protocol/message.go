package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ChannelPath is the well-known path of the conversation channel
const ChannelPath = "/ws/conversation"

// ThemesPath is the catalog endpoint served next to the channel
const ThemesPath = "/api/themes"

// Outbound message types
const (
	TypeStartPractice = "start-practice"
	TypePreference    = "preference"
	TypeEndTurn       = "end-turn"
	TypeControl       = "control"
)

// Inbound message types
const (
	TypeStatus             = "status"
	TypePartialResponse    = "partial-response"
	TypeFinalResponse      = "final-response"
	TypePauseState         = "pause-state"
	TypeError              = "error"
	TypeGeminiDisconnected = "gemini-disconnected"
)

// Control actions
const (
	ActionPause  = "pause"
	ActionResume = "resume"
)

// Well-known status messages
const (
	StatusConnected     = "connected"
	StatusVoiceEnabled  = "voice-enabled"
	StatusVoiceDisabled = "voice-disabled"
)

// ErrMalformed is returned for inbound payloads that cannot be decoded
var ErrMalformed = errors.New("malformed message")

// Outbound is a control message sent by the client
type Outbound struct {
	Type     string `json:"type"`
	Theme    string `json:"theme,omitempty"`
	Scenario string `json:"scenario,omitempty"`
	Action   string `json:"action,omitempty"` // control: "pause" or "resume"
}

// StartPractice requests a new practice sentence
func StartPractice(theme, scenario string) Outbound {
	return Outbound{Type: TypeStartPractice, Theme: theme, Scenario: scenario}
}

// Preference updates the practice focus without restarting
func Preference(theme, scenario string) Outbound {
	return Outbound{Type: TypePreference, Theme: theme, Scenario: scenario}
}

// EndTurn marks the end of a recorded attempt
func EndTurn() Outbound {
	return Outbound{Type: TypeEndTurn}
}

// Control asks the service to pause or resume the session
func Control(action string) Outbound {
	return Outbound{Type: TypeControl, Action: action}
}

// Encode serializes an outbound message as one JSON object
func (m Outbound) Encode() ([]byte, error) {
	if m.Type == "" {
		return nil, fmt.Errorf("outbound message without type")
	}
	return json.Marshal(m)
}

// Inbound is a control message received from the service.
// Optional fields are pointers so absence can be told apart from zero values.
type Inbound struct {
	Type    string   `json:"type"`
	Message string   `json:"message,omitempty"`
	Text    *string  `json:"text,omitempty"`
	Score   *float64 `json:"score,omitempty"`
	Paused  *bool    `json:"paused,omitempty"`
	Audio   string   `json:"audio,omitempty"` // base64 synthesized speech
	Code    int      `json:"code,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// TextOr returns the text field or fallback when it is absent
func (m Inbound) TextOr(fallback string) string {
	if m.Text == nil {
		return fallback
	}
	return *m.Text
}

// IsPaused reports the paused flag, treating absence as false
func (m Inbound) IsPaused() bool {
	return m.Paused != nil && *m.Paused
}

// Decode parses one inbound text message
func Decode(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return msg, nil
}

// Encode serializes an inbound message; used by the local practice server
func (m Inbound) Encode() ([]byte, error) {
	if m.Type == "" {
		return nil, fmt.Errorf("inbound message without type")
	}
	return json.Marshal(m)
}

// DecodeOutbound parses a message sent by a client; used by the local practice server
func DecodeOutbound(data []byte) (Outbound, error) {
	var msg Outbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Outbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type == "" {
		return Outbound{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return msg, nil
}

// ChannelURL derives the conversation channel address from the service origin.
// http becomes ws and https becomes wss; ws and wss origins are kept.
func ChannelURL(origin string) (string, error) {
	u, err := parseOrigin(origin)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	u.Path = ChannelPath
	return u.String(), nil
}

// ThemesURL returns the catalog endpoint for the service origin
func ThemesURL(origin string) (string, error) {
	u, err := parseOrigin(origin)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = ThemesPath
	return u.String(), nil
}

func parseOrigin(origin string) (*url.URL, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return nil, fmt.Errorf("empty origin")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("origin %q has no host", origin)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
