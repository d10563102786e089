package main

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// neutralScore is reported for a turn without audio
const neutralScore = 60

var sentences = map[string]string{
	"job interview":    "I have three years of experience leading small product teams.",
	"business meeting": "Let's review the action items before we close today's meeting.",
	"presentation":     "This chart shows how our revenue grew over the last quarter.",
	"networking":       "It was great meeting you, could we stay in touch by email?",
	"airport":          "Excuse me, where can I find the check-in counter for my flight?",
	"hotel":            "I have a reservation under my name for two nights.",
	"restaurant":       "Could we have a table by the window, please?",
	"sightseeing":      "What time does the museum open on weekends?",
	"shopping":         "Do you have this jacket in a smaller size?",
	"weather":          "It looks like it's going to rain this afternoon.",
	"hobbies":          "In my free time I enjoy hiking and taking photos.",
	"family":           "My older sister lives in another city with her two kids.",
	"meeting friends":  "Shall we grab a coffee after work on Friday?",
	"party":            "Thanks for inviting me, the music tonight is fantastic.",
	"social media":     "I usually share pictures from my trips with close friends.",
	"dating":           "Would you like to have dinner with me this weekend?",
}

// practiceSentence returns the scripted sentence for a scenario
func practiceSentence(theme, scenario string) string {
	if s, ok := sentences[strings.ToLower(scenario)]; ok {
		return s
	}
	switch {
	case scenario != "":
		return fmt.Sprintf("Could you tell me a little more about the %s?", scenario)
	case theme != "":
		return fmt.Sprintf("I would like to talk about %s today.", theme)
	default:
		return "Nice to meet you, how has your day been so far?"
	}
}

// target names the practice focus the way status messages show it
func target(theme, scenario string) string {
	switch {
	case theme != "" && scenario != "":
		return theme + " - " + scenario
	case theme != "":
		return theme
	case scenario != "":
		return scenario
	default:
		return "your practice"
	}
}

// PronunciationScore rates a turn of 16 kHz PCM16 from signal features:
// mean amplitude weighted 0.6 and zero crossings weighted 0.4, each capped
// at 100. It does not judge the words spoken.
func PronunciationScore(pcm []int16) int {
	if len(pcm) == 0 {
		return neutralScore
	}

	var energy float64
	for _, s := range pcm {
		energy += math.Abs(float64(s))
	}
	energy /= float64(len(pcm))

	crossings := 0
	for i := 1; i < len(pcm); i++ {
		if (pcm[i] < 0) != (pcm[i-1] < 0) {
			crossings++
		}
	}

	energyScore := math.Min(100, energy/1000)
	rhythmScore := math.Min(100, float64(crossings)/100)
	score := int(0.6*energyScore + 0.4*rhythmScore)
	return max(0, min(100, score))
}

// feedback builds the scripted reply to a scored attempt
func feedback(a Attempt) string {
	var b strings.Builder
	switch {
	case a.Score >= 80:
		b.WriteString("Excellent, that sounded clear and natural.")
	case a.Score >= 50:
		b.WriteString("Good attempt, try to keep a steady rhythm.")
	case a.Score > 0:
		b.WriteString("I could barely hear you, please speak a bit louder.")
	default:
		b.WriteString("I did not hear anything, check your microphone.")
	}

	if a.Transcript != "" {
		fmt.Fprintf(&b, " I heard %q", a.Transcript)
		if a.Sentence != "" {
			matched, total := matchWords(a.Sentence, a.Transcript)
			fmt.Fprintf(&b, ", %d of %d words matched", matched, total)
		}
		b.WriteString(".")
	}

	if a.Sentence == "" {
		b.WriteString(" Start a practice round to get a sentence.")
	} else {
		fmt.Fprintf(&b, " Try it once more: %q", a.Sentence)
	}
	return b.String()
}

// matchWords counts the sentence words found in the transcript, ignoring
// case and punctuation. Each transcript word matches at most once.
func matchWords(sentence, transcript string) (int, int) {
	heard := make(map[string]int)
	for _, w := range words(transcript) {
		heard[w]++
	}
	expected := words(sentence)
	matched := 0
	for _, w := range expected {
		if heard[w] > 0 {
			heard[w]--
			matched++
		}
	}
	return matched, len(expected)
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// fragments splits text into streamed deltas of a few words each.
// Concatenating the fragments yields text.
func fragments(text string, words int) []string {
	fields := strings.SplitAfter(text, " ")
	var out []string
	for start := 0; start < len(fields); start += words {
		end := min(start+words, len(fields))
		out = append(out, strings.Join(fields[start:end], ""))
	}
	return out
}
