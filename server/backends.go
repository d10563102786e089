package main

import (
	"example.com/voice_practice/pkg/assemblyai"
	"example.com/voice_practice/pkg/config"
	"example.com/voice_practice/pkg/deepgram"
	"example.com/voice_practice/pkg/elevenlabs"
	"example.com/voice_practice/pkg/openai"
	"example.com/voice_practice/pkg/stt"
)

// tutorFactory returns nil for the scripted tutor
func tutorFactory(cfg config.TutorConfig) TutorFactory {
	if cfg.Provider != config.TutorOpenAI {
		return nil
	}
	return func() Tutor {
		return NewChatTutor(openai.NewClient(openai.Config{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		}))
	}
}

// transcriberFactory returns nil when turns are not transcribed
func transcriberFactory(cfg config.SpeechConfig) stt.Factory {
	sttConfig := stt.Config{APIKey: cfg.APIKey}
	switch cfg.Provider {
	case config.SpeechDeepgram:
		return func() stt.Transcriber { return deepgram.NewClient(sttConfig) }
	case config.SpeechAssemblyAI:
		return func() stt.Transcriber { return assemblyai.NewClient(sttConfig) }
	default:
		return nil
	}
}

// synthesizer returns nil when voice is disabled
func synthesizer(cfg config.DevServerConfig) Synthesizer {
	if !cfg.VoiceEnabled() {
		return nil
	}
	return elevenlabs.NewClient(elevenlabs.Config{
		APIKey:  cfg.Voice.APIKey,
		VoiceID: cfg.Voice.VoiceID,
		Model:   cfg.Voice.Model,
		Timeout: cfg.GetReplyTimeout(),
	})
}
