// Package elevenlabs synthesizes spoken replies with the ElevenLabs TTS API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	apiURL = "https://api.elevenlabs.io/v1"

	// maxAudioBytes bounds one synthesized reply
	maxAudioBytes = 8 << 20
)

// ErrEmptyText is returned when there is nothing to synthesize
var ErrEmptyText = errors.New("empty text")

// Client is an ElevenLabs TTS client
type Client struct {
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
	baseURL      string
	client       *http.Client
}

// Config holds ElevenLabs client configuration
type Config struct {
	APIKey       string
	VoiceID      string // e.g., "21m00Tcm4TlvDq8ikWAM" (Rachel)
	Model        string // e.g., "eleven_turbo_v2_5"
	OutputFormat string // MP3 formats only, e.g., "mp3_44100_128"
	BaseURL      string // API root override
	Timeout      time.Duration
}

// NewClient creates a new ElevenLabs client
func NewClient(config Config) *Client {
	if config.VoiceID == "" {
		config.VoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel - default voice
	}
	if config.Model == "" {
		config.Model = "eleven_turbo_v2_5" // Fast model
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "mp3_44100_128"
	}
	if config.BaseURL == "" {
		config.BaseURL = apiURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		apiKey:       config.APIKey,
		voiceID:      config.VoiceID,
		model:        config.Model,
		outputFormat: config.OutputFormat,
		baseURL:      config.BaseURL,
		client:       &http.Client{Timeout: config.Timeout},
	}
}

// ttsRequest is the request body for text-to-speech
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed"`
}

// Synthesize converts text to speech and returns the MP3 bytes
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	// output_format must be a query parameter, not in the body
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		c.baseURL, url.PathEscape(c.voiceID), url.QueryEscape(c.outputFormat))

	reqBody := ttsRequest{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           1.0,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}

// SynthesizeBase64 returns the synthesized MP3 encoded for a final-response audio field
func (c *Client) SynthesizeBase64(ctx context.Context, text string) (string, error) {
	data, err := c.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
