package config

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid https origin",
			mutate: func(c *Config) { c.Server.Origin = "https://practice.example.com" },
		},
		{
			name:        "websocket origin rejected",
			mutate:      func(c *Config) { c.Server.Origin = "ws://localhost:8000" },
			expectError: true,
			errorMsg:    "origin must start with http:// or https://",
		},
		{
			name:        "zero handshake timeout",
			mutate:      func(c *Config) { c.Server.HandshakeTimeout = 0 },
			expectError: true,
			errorMsg:    "handshake_timeout must be at least 1 second",
		},
		{
			name: "connect shorter than handshake",
			mutate: func(c *Config) {
				c.Server.HandshakeTimeout = 10
				c.Server.ConnectTimeout = 5
			},
			expectError: true,
			errorMsg:    "connect_timeout (5) must not be shorter than handshake_timeout (10)",
		},
		{
			name:        "tiny frames per buffer",
			mutate:      func(c *Config) { c.Audio.FramesPerBuffer = 16 },
			expectError: true,
			errorMsg:    "frames_per_buffer must be between 64 and 16384",
		},
		{
			name:        "empty queue",
			mutate:      func(c *Config) { c.Audio.QueueSize = 0 },
			expectError: true,
			errorMsg:    "queue_size must be at least 1",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
		{
			name:        "invalid log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
			errorMsg:    "format must be 'json' or 'console'",
		},
		{
			name:        "empty listen",
			mutate:      func(c *Config) { c.Dev.Listen = "" },
			expectError: true,
			errorMsg:    "listen cannot be empty",
		},
		{
			name:        "negative fragment delay",
			mutate:      func(c *Config) { c.Dev.FragmentDelay = -1 },
			expectError: true,
			errorMsg:    "fragment_delay_ms cannot be negative",
		},
		{
			name:        "openai tutor without key",
			mutate:      func(c *Config) { c.Dev.Tutor.Provider = TutorOpenAI },
			expectError: true,
			errorMsg:    "tutor provider openai requires an api_key",
		},
		{
			name: "openai tutor with key",
			mutate: func(c *Config) {
				c.Dev.Tutor.Provider = TutorOpenAI
				c.Dev.Tutor.APIKey = "sk-test"
			},
			expectError: false,
		},
		{
			name:        "unknown tutor",
			mutate:      func(c *Config) { c.Dev.Tutor.Provider = "parrot" },
			expectError: true,
			errorMsg:    "tutor provider must be",
		},
		{
			name:        "speech without key",
			mutate:      func(c *Config) { c.Dev.Speech.Provider = SpeechDeepgram },
			expectError: true,
			errorMsg:    "speech provider deepgram requires an api_key",
		},
		{
			name:        "unknown speech provider",
			mutate:      func(c *Config) { c.Dev.Speech.Provider = "whisper" },
			expectError: true,
			errorMsg:    "speech provider must be",
		},
		{
			name:        "zero reply timeout",
			mutate:      func(c *Config) { c.Dev.ReplyTimeout = 0 },
			expectError: true,
			errorMsg:    "reply_timeout must be at least 1 second",
		},
		{
			name:        "scenario without theme",
			mutate:      func(c *Config) { c.Practice.Scenario = "Airport" },
			expectError: true,
			errorMsg:    "scenario \"Airport\" set without a theme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  origin: "https://practice.example.com"
  handshake_timeout: 3
  connect_timeout: 6
practice:
  theme: "Travel"
  scenario: "Airport"
audio:
  frames_per_buffer: 512
logging:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Server.Origin != "https://practice.example.com" {
		t.Errorf("Expected origin from file, got %s", config.Server.Origin)
	}
	if config.Practice.Theme != "Travel" || config.Practice.Scenario != "Airport" {
		t.Errorf("Expected Travel/Airport, got %s/%s", config.Practice.Theme, config.Practice.Scenario)
	}
	if config.Audio.FramesPerBuffer != 512 {
		t.Errorf("Expected 512 frames per buffer, got %d", config.Audio.FramesPerBuffer)
	}
	if config.Audio.QueueSize != 256 {
		t.Errorf("Expected default queue size 256, got %d", config.Audio.QueueSize)
	}
	if config.Logging.Format != "console" {
		t.Errorf("Expected default console format, got %s", config.Logging.Format)
	}
	if config.Server.GetConnectTimeout() != 6*time.Second {
		t.Errorf("Expected 6s connect timeout, got %v", config.Server.GetConnectTimeout())
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected validation error for invalid log level")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PRACTICE_SERVER_ORIGIN":     "http://10.0.0.5:9000",
		"PRACTICE_THEME":             "Business",
		"PRACTICE_QUEUE_SIZE":        "32",
		"PRACTICE_PLAYBACK":          "false",
		"PRACTICE_FRAGMENT_DELAY_MS": "0",
		"PRACTICE_SPEECH":            "assemblyai",
		"ASSEMBLYAI_API_KEY":         "aai-key",
		"DEEPGRAM_API_KEY":           "dg-key",
		"ELEVENLABS_API_KEY":         "el-key",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	config := Default()
	if err := config.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if config.Server.Origin != "http://10.0.0.5:9000" {
		t.Errorf("Expected origin override, got %s", config.Server.Origin)
	}
	if config.Practice.Theme != "Business" {
		t.Errorf("Expected theme Business, got %s", config.Practice.Theme)
	}
	if config.Audio.QueueSize != 32 {
		t.Errorf("Expected queue size 32, got %d", config.Audio.QueueSize)
	}
	if config.Playback.Enabled {
		t.Error("Expected playback disabled")
	}
	if config.Dev.GetFragmentDelay() != 0 {
		t.Errorf("Expected zero fragment delay, got %v", config.Dev.GetFragmentDelay())
	}
	if config.Dev.Speech.APIKey != "aai-key" {
		t.Errorf("Expected the AssemblyAI key for the assemblyai provider, got %q", config.Dev.Speech.APIKey)
	}
	if !config.Dev.VoiceEnabled() {
		t.Error("Expected voice enabled by ELEVENLABS_API_KEY")
	}
	if config.Dev.Tutor.APIKey != "" {
		t.Errorf("Expected no tutor key, got %q", config.Dev.Tutor.APIKey)
	}

	env = map[string]string{"PRACTICE_QUEUE_SIZE": "many"}
	if err := Default().ApplyEnv(lookup); err == nil {
		t.Error("Expected error for non-numeric queue size")
	}
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	fs := flag.NewFlagSet("practice", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	if err := fs.Parse([]string{"-theme", "Travel", "-scenario", "Hotel Check-in", "-no-playback"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	config := Default()
	config.Server.Origin = "https://kept.example.com"
	if err := flags.Apply(config); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if config.Practice.Theme != "Travel" || config.Practice.Scenario != "Hotel Check-in" {
		t.Errorf("Expected Travel/Hotel Check-in, got %s/%s", config.Practice.Theme, config.Practice.Scenario)
	}
	if config.Server.Origin != "https://kept.example.com" {
		t.Errorf("Unset flag should not override origin, got %s", config.Server.Origin)
	}
	if config.Playback.Enabled {
		t.Error("Expected -no-playback to disable playback")
	}
}

func TestFlagsApplyValidates(t *testing.T) {
	fs := flag.NewFlagSet("practice", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	if err := fs.Parse([]string{"-log-level", "chatty"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := flags.Apply(Default()); err == nil {
		t.Error("Expected validation error for invalid log level flag")
	}
}

func TestLoggingSetup(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())
	defer func(saved zerolog.Logger) { log.Logger = saved }(log.Logger)

	var buf bytes.Buffer
	cfg := LoggingConfig{Level: "warn", Format: "json"}
	cfg.Setup(&buf)

	log.Info().Msg("hidden")
	log.Warn().Str("component", "test").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info line to be filtered, got %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) || !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("Expected structured warn line, got %s", out)
	}
}
