package main

import (
	"fmt"
	"io"
	"sync"

	"example.com/voice_practice/pkg/session"
)

// Terminal renders session output as plain lines
type Terminal struct {
	out       io.Writer
	mu        sync.Mutex
	streaming bool // an assistant line is open
	phase     session.Phase
}

// NewTerminal creates a presenter writing to out
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Status prints a status notice
func (t *Terminal) Status(text string, tone session.Tone) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLine()
	fmt.Fprintf(t.out, "[%s] %s\n", tone, text)
}

// AppendAssistant streams a fragment of the assistant reply
func (t *Terminal) AppendAssistant(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.streaming {
		fmt.Fprint(t.out, "AI: ")
		t.streaming = true
	}
	fmt.Fprint(t.out, text)
}

// FinalizeAssistant ends the reply. A final text replaces what was streamed.
func (t *Terminal) FinalizeAssistant(text *string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if text == nil {
		t.endLine()
		return
	}
	if t.streaming {
		fmt.Fprint(t.out, "\r\033[K")
		t.streaming = false
	}
	fmt.Fprintf(t.out, "AI: %s\n", *text)
}

// UserMessage prints an entry on behalf of the user
func (t *Terminal) UserMessage(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLine()
	fmt.Fprintf(t.out, "You: %s\n", text)
}

// Score prints the pronunciation score
func (t *Terminal) Score(score float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLine()
	fmt.Fprintf(t.out, "Score: %.0f/100\n", score)
}

// Phase records the current phase for the status command
func (t *Terminal) Phase(phase session.Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
}

// CurrentPhase returns the last reported phase
func (t *Terminal) CurrentPhase() session.Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Println prints a line outside of the session flow
func (t *Terminal) Println(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endLine()
	fmt.Fprintln(t.out, text)
}

func (t *Terminal) endLine() {
	if t.streaming {
		fmt.Fprintln(t.out)
		t.streaming = false
	}
}
