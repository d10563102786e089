package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "PRACTICE_"

// Config represents the complete client and practice server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Practice  PracticeConfig  `yaml:"practice"`
	Audio     AudioConfig     `yaml:"audio"`
	Recording RecordingConfig `yaml:"recording"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Dev       DevServerConfig `yaml:"dev_server"`
}

// ServerConfig contains the practice service address
type ServerConfig struct {
	Origin           string `yaml:"origin"`            // http(s) origin, channel and catalog derive from it
	HandshakeTimeout int    `yaml:"handshake_timeout"` // seconds
	ConnectTimeout   int    `yaml:"connect_timeout"`   // seconds
}

// PracticeConfig contains the initial practice focus. Empty values take the
// first catalog entry.
type PracticeConfig struct {
	Theme    string `yaml:"theme"`
	Scenario string `yaml:"scenario"`
}

// AudioConfig contains capture and pipeline parameters
type AudioConfig struct {
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
	QueueSize       int    `yaml:"queue_size"` // frames buffered between capture and chunker
	InputFile       string `yaml:"input_file"` // replay a WAV file instead of the microphone
}

// RecordingConfig contains the optional turn recorder settings
type RecordingConfig struct {
	Dir string `yaml:"dir"` // empty disables recording
}

// PlaybackConfig contains synthesized speech playback settings
type PlaybackConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	Address string `yaml:"address"` // empty disables the endpoint
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DevServerConfig contains the local practice server settings
type DevServerConfig struct {
	Listen        string       `yaml:"listen"`
	FragmentDelay int          `yaml:"fragment_delay_ms"`
	ReplyTimeout  int          `yaml:"reply_timeout"` // seconds
	Tutor         TutorConfig  `yaml:"tutor"`
	Speech        SpeechConfig `yaml:"speech"`
	Voice         VoiceConfig  `yaml:"voice"`
}

// TutorConfig selects who writes sentences and feedback
type TutorConfig struct {
	Provider string `yaml:"provider"` // scripted or openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// SpeechConfig selects the transcriber of practice turns
type SpeechConfig struct {
	Provider string `yaml:"provider"` // none, deepgram or assemblyai
	APIKey   string `yaml:"api_key"`
}

// VoiceConfig contains ElevenLabs settings; voice is enabled when a key is set
type VoiceConfig struct {
	APIKey  string `yaml:"api_key"`
	VoiceID string `yaml:"voice_id"`
	Model   string `yaml:"model"`
}

// Tutor and speech providers
const (
	TutorScripted    = "scripted"
	TutorOpenAI      = "openai"
	SpeechNone       = "none"
	SpeechDeepgram   = "deepgram"
	SpeechAssemblyAI = "assemblyai"
)

// Default returns a configuration with every value set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Origin:           "http://localhost:8000",
			HandshakeTimeout: 10,
			ConnectTimeout:   15,
		},
		Audio: AudioConfig{
			FramesPerBuffer: 1024,
			QueueSize:       256,
		},
		Playback: PlaybackConfig{Enabled: true},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Dev: DevServerConfig{
			Listen:        ":8000",
			FragmentDelay: 80,
			ReplyTimeout:  20,
			Tutor:         TutorConfig{Provider: TutorScripted},
			Speech:        SpeechConfig{Provider: SpeechNone},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file in the working directory and PRACTICE_* environment variables
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// ApplyEnv overrides values from PRACTICE_* variables found by lookup.
// Provider keys are read from their usual variables, e.g. OPENAI_API_KEY.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
		return nil
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
		return nil
	}

	str("SERVER_ORIGIN", &c.Server.Origin)
	str("THEME", &c.Practice.Theme)
	str("SCENARIO", &c.Practice.Scenario)
	str("INPUT_FILE", &c.Audio.InputFile)
	str("RECORDINGS_DIR", &c.Recording.Dir)
	str("METRICS_ADDR", &c.Metrics.Address)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LISTEN", &c.Dev.Listen)
	str("TUTOR", &c.Dev.Tutor.Provider)
	str("TUTOR_MODEL", &c.Dev.Tutor.Model)
	str("SPEECH", &c.Dev.Speech.Provider)
	str("VOICE_ID", &c.Dev.Voice.VoiceID)

	vendor := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	vendor("OPENAI_API_KEY", &c.Dev.Tutor.APIKey)
	vendor("ELEVENLABS_API_KEY", &c.Dev.Voice.APIKey)
	switch c.Dev.Speech.Provider {
	case SpeechDeepgram:
		vendor("DEEPGRAM_API_KEY", &c.Dev.Speech.APIKey)
	case SpeechAssemblyAI:
		vendor("ASSEMBLYAI_API_KEY", &c.Dev.Speech.APIKey)
	}

	for key, dst := range map[string]*int{
		"HANDSHAKE_TIMEOUT": &c.Server.HandshakeTimeout,
		"CONNECT_TIMEOUT":   &c.Server.ConnectTimeout,
		"FRAMES_PER_BUFFER": &c.Audio.FramesPerBuffer,
		"QUEUE_SIZE":        &c.Audio.QueueSize,
		"FRAGMENT_DELAY_MS": &c.Dev.FragmentDelay,
		"REPLY_TIMEOUT":     &c.Dev.ReplyTimeout,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return boolean("PLAYBACK", &c.Playback.Enabled)
}

// Flags holds command line overrides; only flags that were set are applied
type Flags struct {
	fs       *flag.FlagSet
	origin   *string
	theme    *string
	scenario *string
	input    *string
	record   *string
	metrics  *string
	level    *string
	listen   *string
	noPlay   *bool
}

// RegisterFlags adds the override flags to fs
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs:       fs,
		origin:   fs.String("server", "", "practice service origin, e.g. http://localhost:8000"),
		theme:    fs.String("theme", "", "practice theme"),
		scenario: fs.String("scenario", "", "practice scenario"),
		input:    fs.String("input", "", "replay a WAV file instead of the microphone"),
		record:   fs.String("record-dir", "", "write each sent turn to a WAV file in this directory"),
		metrics:  fs.String("metrics", "", "expose Prometheus metrics on this address"),
		level:    fs.String("log-level", "", "log level (debug, info, warn, error)"),
		listen:   fs.String("listen", "", "practice server listen address"),
		noPlay:   fs.Bool("no-playback", false, "do not play synthesized speech"),
	}
}

// Apply copies every explicitly set flag into config and re-validates it
func (f *Flags) Apply(config *Config) error {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "server":
			config.Server.Origin = *f.origin
		case "theme":
			config.Practice.Theme = *f.theme
		case "scenario":
			config.Practice.Scenario = *f.scenario
		case "input":
			config.Audio.InputFile = *f.input
		case "record-dir":
			config.Recording.Dir = *f.record
		case "metrics":
			config.Metrics.Address = *f.metrics
		case "log-level":
			config.Logging.Level = *f.level
		case "listen":
			config.Dev.Listen = *f.listen
		case "no-playback":
			config.Playback.Enabled = !*f.noPlay
		}
	})
	return config.Validate()
}

// Validate performs validation of the whole configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := c.Dev.Validate(); err != nil {
		return fmt.Errorf("dev_server config: %w", err)
	}
	if c.Practice.Scenario != "" && c.Practice.Theme == "" {
		return fmt.Errorf("practice config: scenario %q set without a theme", c.Practice.Scenario)
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	origin := strings.ToLower(s.Origin)
	if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
		return fmt.Errorf("origin must start with http:// or https://, got '%s'", s.Origin)
	}
	if s.HandshakeTimeout < 1 {
		return fmt.Errorf("handshake_timeout must be at least 1 second, got %d", s.HandshakeTimeout)
	}
	if s.ConnectTimeout < s.HandshakeTimeout {
		return fmt.Errorf("connect_timeout (%d) must not be shorter than handshake_timeout (%d)",
			s.ConnectTimeout, s.HandshakeTimeout)
	}
	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.FramesPerBuffer < 64 || a.FramesPerBuffer > 16384 {
		return fmt.Errorf("frames_per_buffer must be between 64 and 16384, got %d", a.FramesPerBuffer)
	}
	if a.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", a.QueueSize)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'console', got '%s'", l.Format)
	}
	return nil
}

// Validate validates practice server configuration
func (d *DevServerConfig) Validate() error {
	if d.Listen == "" {
		return fmt.Errorf("listen cannot be empty")
	}
	if d.FragmentDelay < 0 {
		return fmt.Errorf("fragment_delay_ms cannot be negative, got %d", d.FragmentDelay)
	}
	if d.ReplyTimeout < 1 {
		return fmt.Errorf("reply_timeout must be at least 1 second, got %d", d.ReplyTimeout)
	}

	switch d.Tutor.Provider {
	case TutorScripted:
	case TutorOpenAI:
		if d.Tutor.APIKey == "" {
			return fmt.Errorf("tutor provider openai requires an api_key")
		}
	default:
		return fmt.Errorf("tutor provider must be 'scripted' or 'openai', got '%s'", d.Tutor.Provider)
	}

	switch d.Speech.Provider {
	case "", SpeechNone:
	case SpeechDeepgram, SpeechAssemblyAI:
		if d.Speech.APIKey == "" {
			return fmt.Errorf("speech provider %s requires an api_key", d.Speech.Provider)
		}
	default:
		return fmt.Errorf("speech provider must be 'none', 'deepgram' or 'assemblyai', got '%s'", d.Speech.Provider)
	}
	return nil
}

// VoiceEnabled reports whether replies are synthesized to speech
func (d *DevServerConfig) VoiceEnabled() bool {
	return d.Voice.APIKey != ""
}

// GetReplyTimeout returns the timeout of each backend call
func (d *DevServerConfig) GetReplyTimeout() time.Duration {
	return time.Duration(d.ReplyTimeout) * time.Second
}

// GetHandshakeTimeout returns the handshake timeout as a time.Duration
func (s *ServerConfig) GetHandshakeTimeout() time.Duration {
	return time.Duration(s.HandshakeTimeout) * time.Second
}

// GetConnectTimeout returns the connect timeout as a time.Duration
func (s *ServerConfig) GetConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeout) * time.Second
}

// GetFragmentDelay returns the delay between streamed fragments
func (d *DevServerConfig) GetFragmentDelay() time.Duration {
	return time.Duration(d.FragmentDelay) * time.Millisecond
}
