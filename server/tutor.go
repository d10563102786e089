package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/voice_practice/pkg/openai"
)

// Attempt describes one scored practice turn
type Attempt struct {
	Theme      string
	Scenario   string
	Sentence   string
	Transcript string // empty without a transcriber
	Score      int
}

// Tutor writes the replies of one practice session. Replies are streamed
// through emit as they are produced; the full text is returned.
type Tutor interface {
	Sentence(ctx context.Context, theme, scenario string, emit func(string)) (string, error)
	Feedback(ctx context.Context, attempt Attempt, emit func(string)) (string, error)
}

// TutorFactory creates the tutor of a new session
type TutorFactory func() Tutor

// ScriptedTutor replies with fixed sentences and score-banded feedback
type ScriptedTutor struct {
	Delay time.Duration // pause between streamed fragments
}

// Sentence implements Tutor
func (t ScriptedTutor) Sentence(ctx context.Context, theme, scenario string, emit func(string)) (string, error) {
	text := practiceSentence(theme, scenario)
	return text, t.emit(ctx, text, emit)
}

// Feedback implements Tutor
func (t ScriptedTutor) Feedback(ctx context.Context, attempt Attempt, emit func(string)) (string, error) {
	text := feedback(attempt)
	return text, t.emit(ctx, text, emit)
}

func (t ScriptedTutor) emit(ctx context.Context, text string, emit func(string)) error {
	for i, fragment := range fragments(text, 3) {
		if i > 0 && t.Delay > 0 {
			select {
			case <-time.After(t.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		emit(fragment)
	}
	return nil
}

// ChatTutor asks a chat model for sentences and feedback. The client keeps
// the session's conversation, so each session needs its own ChatTutor.
type ChatTutor struct {
	client *openai.Client
}

// NewChatTutor creates a tutor backed by client
func NewChatTutor(client *openai.Client) *ChatTutor {
	return &ChatTutor{client: client}
}

// Sentence implements Tutor
func (t *ChatTutor) Sentence(ctx context.Context, theme, scenario string, emit func(string)) (string, error) {
	prompt := fmt.Sprintf(
		"Give me one short, natural English sentence to practice pronunciation for %s. "+
			"Reply with the sentence only.", target(theme, scenario))
	return t.ask(ctx, prompt, emit)
}

// Feedback implements Tutor
func (t *ChatTutor) Feedback(ctx context.Context, attempt Attempt, emit func(string)) (string, error) {
	var b strings.Builder
	if attempt.Sentence != "" {
		fmt.Fprintf(&b, "The practice sentence was %q. ", attempt.Sentence)
	}
	if attempt.Transcript != "" {
		fmt.Fprintf(&b, "Speech recognition heard %q. ", attempt.Transcript)
	} else {
		b.WriteString("No transcript is available. ")
	}
	fmt.Fprintf(&b, "The loudness and clarity score is %d out of 100. ", attempt.Score)
	b.WriteString("Give one or two sentences of encouraging pronunciation feedback.")
	return t.ask(ctx, b.String(), emit)
}

func (t *ChatTutor) ask(ctx context.Context, prompt string, emit func(string)) (string, error) {
	text, err := t.client.ChatStream(ctx, prompt, emit)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
