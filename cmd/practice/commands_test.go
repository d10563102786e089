package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"example.com/voice_practice/client"
	"example.com/voice_practice/pkg/session"
	"example.com/voice_practice/pkg/themes"
)

func TestParseCommand(t *testing.T) {
	catalog := themes.Builtin()
	tests := []struct {
		line     string
		expected session.Event
	}{
		{"start", session.StartPractice{}},
		{"start travel", session.StartPractice{Theme: "travel", Scenario: "airport"}},
		{"start daily life / weather", session.StartPractice{Theme: "daily life", Scenario: "weather"}},
		{"  record ", session.StartRecording{}},
		{"r", session.StartRecording{}},
		{"stop", session.StopRecording{}},
		{"s", session.StopRecording{}},
		{"pref social / party", session.ChangePreference{Theme: "social", Scenario: "party"}},
		{"pause", session.RequestPause{Paused: true}},
		{"resume", session.RequestPause{Paused: false}},
		{"disconnect", session.Disconnect{}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := parseCommand(tt.line, catalog)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if cmd.event != tt.expected {
				t.Errorf("Expected %#v, got %#v", tt.expected, cmd.event)
			}
		})
	}
}

func TestParseCommandLocalActions(t *testing.T) {
	catalog := themes.Builtin()

	cmd, _ := parseCommand("quit", catalog)
	if !cmd.quit {
		t.Error("Expected quit")
	}
	cmd, _ = parseCommand("status", catalog)
	if !cmd.status {
		t.Error("Expected status")
	}
	cmd, _ = parseCommand("themes", catalog)
	if !strings.Contains(cmd.output, "travel: airport, hotel, restaurant, sightseeing") {
		t.Errorf("Expected catalog listing, got %q", cmd.output)
	}
	cmd, _ = parseCommand("help", catalog)
	if !strings.HasPrefix(cmd.output, "Commands:") {
		t.Errorf("Expected help text, got %q", cmd.output)
	}
	cmd, err := parseCommand("", catalog)
	if err != nil || cmd.event != nil || cmd.quit {
		t.Errorf("Expected empty line to do nothing, got %+v, %v", cmd, err)
	}
}

func TestParseCommandErrors(t *testing.T) {
	catalog := themes.Builtin()
	tests := []struct {
		line string
		is   error
	}{
		{"dance", errUnknownCommand},
		{"start cooking", themes.ErrUnknownTheme},
		{"start travel / moon", themes.ErrUnknownTheme},
		{"pref travel", nil},
		{"pref travel / moon", themes.ErrUnknownTheme},
	}

	for _, tt := range tests {
		_, err := parseCommand(tt.line, catalog)
		if err == nil {
			t.Errorf("%q: expected error", tt.line)
			continue
		}
		if tt.is != nil && !errors.Is(err, tt.is) {
			t.Errorf("%q: expected %v, got %v", tt.line, tt.is, err)
		}
	}
}

func TestTerminalRendering(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Status("Connected.", session.ToneInfo)
	term.AppendAssistant("Could we ")
	term.AppendAssistant("have a table?")
	term.UserMessage("Audio sent")
	term.FinalizeAssistant(nil)
	term.Score(75)

	expected := "[info] Connected.\nAI: Could we have a table?\nYou: Audio sent\nScore: 75/100\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestTerminalFinalReplacesStream(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	text := "Nice work"
	term.AppendAssistant("Nice")
	term.FinalizeAssistant(&text)

	if !strings.HasSuffix(buf.String(), "AI: Nice work\n") {
		t.Errorf("Expected final text line, got %q", buf.String())
	}
	term.Phase(session.PhaseReady)
	if term.CurrentPhase() != session.PhaseReady {
		t.Errorf("Expected ready phase, got %s", term.CurrentPhase())
	}
}

func TestReadCommandsStopsOnQuit(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	runner := session.NewRunner(session.RunnerConfig{
		Theme:     "travel",
		Scenario:  "airport",
		Transport: client.NewClient(client.Config{URL: "ws://127.0.0.1:1/ws/conversation"}),
		Presenter: term,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	in := strings.NewReader("dance\nstatus\nquit\nrecord\n")
	readCommands(ctx, in, runner, term, themes.Builtin())

	out := buf.String()
	if !strings.Contains(out, `unknown command "dance"`) {
		t.Errorf("Expected unknown command notice, got %q", out)
	}
	if !strings.Contains(out, "Phase: ") {
		t.Errorf("Expected phase line, got %q", out)
	}
}
