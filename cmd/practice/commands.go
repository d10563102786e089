package main

import (
	"errors"
	"fmt"
	"strings"

	"example.com/voice_practice/pkg/session"
	"example.com/voice_practice/pkg/themes"
)

const helpText = `Commands:
  start [theme [/ scenario]]   connect and request a practice sentence
  record | r                   start recording an attempt
  stop | s                     stop recording and ask for feedback
  pref theme / scenario        change the practice focus
  pause | resume               pause or resume the conversation
  themes                       list themes and scenarios
  status                       show the session phase
  disconnect                   close the connection
  quit                         exit`

var errUnknownCommand = errors.New("unknown command")

// command is one parsed input line
type command struct {
	event  session.Event // posted to the runner when set
	output string        // printed locally when set
	status bool          // print the session phase
	quit   bool
}

// parseCommand turns an input line into a session event or a local action
func parseCommand(line string, catalog *themes.Catalog) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{}, nil
	}
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "start":
		theme, scenario := splitFocus(rest)
		if theme != "" {
			var err error
			if theme, scenario, err = catalog.Resolve(theme, scenario); err != nil {
				return command{}, err
			}
		}
		return command{event: session.StartPractice{Theme: theme, Scenario: scenario}}, nil
	case "record", "r":
		return command{event: session.StartRecording{}}, nil
	case "stop", "s":
		return command{event: session.StopRecording{}}, nil
	case "pref", "preference":
		theme, scenario := splitFocus(rest)
		if theme == "" || scenario == "" {
			return command{}, fmt.Errorf("usage: pref theme / scenario")
		}
		if err := catalog.Validate(theme, scenario); err != nil {
			return command{}, err
		}
		return command{event: session.ChangePreference{Theme: theme, Scenario: scenario}}, nil
	case "pause":
		return command{event: session.RequestPause{Paused: true}}, nil
	case "resume":
		return command{event: session.RequestPause{Paused: false}}, nil
	case "disconnect":
		return command{event: session.Disconnect{}}, nil
	case "themes":
		return command{output: describeCatalog(catalog)}, nil
	case "status":
		return command{status: true}, nil
	case "help", "?":
		return command{output: helpText}, nil
	case "quit", "exit", "q":
		return command{quit: true}, nil
	default:
		return command{}, fmt.Errorf("%w %q, type help", errUnknownCommand, verb)
	}
}

// splitFocus parses "theme / scenario"; both parts may contain spaces
func splitFocus(s string) (string, string) {
	theme, scenario, _ := strings.Cut(s, "/")
	return strings.TrimSpace(theme), strings.TrimSpace(scenario)
}

func describeCatalog(catalog *themes.Catalog) string {
	var b strings.Builder
	for i, name := range catalog.Names() {
		if i > 0 {
			b.WriteString("\n")
		}
		scenarios, _ := catalog.Scenarios(name)
		fmt.Fprintf(&b, "%s: %s", name, strings.Join(scenarios, ", "))
	}
	return b.String()
}
