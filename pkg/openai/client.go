// Package openai streams tutor replies from the OpenAI chat completions API.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const apiURL = "https://api.openai.com/v1/chat/completions"

// maxHistory bounds the remembered conversation, oldest turns go first
const maxHistory = 20

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is an OpenAI chat client holding one conversation
type Client struct {
	apiKey       string
	model        string
	url          string
	systemPrompt string
	httpClient   *http.Client
	messages     []Message // Conversation history
}

// Config holds OpenAI client configuration
type Config struct {
	APIKey       string
	Model        string // e.g., "gpt-4o-mini" (default)
	URL          string // chat completions endpoint override
	SystemPrompt string
	HTTPClient   *http.Client
}

// StreamCallback is called for each content delta of the streaming response
type StreamCallback func(delta string)

// NewClient creates a new OpenAI client
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = "gpt-4o-mini" // Cost-optimized for text
	}
	if config.URL == "" {
		config.URL = apiURL
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = "You are a friendly English pronunciation tutor. Keep replies short since they will be spoken aloud."
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &Client{
		apiKey:       config.APIKey,
		model:        config.Model,
		url:          config.URL,
		systemPrompt: config.SystemPrompt,
		httpClient:   config.HTTPClient,
	}
}

// chatRequest is the request body for chat completions
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// streamResponse represents a streaming response chunk
type streamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatStream sends a message, streams the reply deltas to callback and
// returns the full reply. The exchange is kept as conversation history.
func (c *Client) ChatStream(ctx context.Context, userMessage string, callback StreamCallback) (string, error) {
	messages := make([]Message, 0, len(c.messages)+2)
	messages = append(messages, Message{Role: "system", Content: c.systemPrompt})
	messages = append(messages, c.messages...)
	messages = append(messages, Message{Role: "user", Content: userMessage})

	jsonBody, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	// Read SSE stream
	reader := bufio.NewReader(resp.Body)
	var fullResponse strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("read error: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var streamResp streamResponse
		if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
			continue
		}
		if len(streamResp.Choices) > 0 {
			content := streamResp.Choices[0].Delta.Content
			if content != "" {
				fullResponse.WriteString(content)
				if callback != nil {
					callback(content)
				}
			}
		}
	}

	reply := fullResponse.String()
	if reply != "" {
		c.remember(Message{Role: "user", Content: userMessage}, Message{Role: "assistant", Content: reply})
	}
	return reply, nil
}

func (c *Client) remember(msgs ...Message) {
	c.messages = append(c.messages, msgs...)
	if extra := len(c.messages) - maxHistory; extra > 0 {
		c.messages = append(c.messages[:0:0], c.messages[extra:]...)
	}
}

// ClearHistory clears the conversation history
func (c *Client) ClearHistory() {
	c.messages = nil
}

// MessageCount returns the number of messages in history
func (c *Client) MessageCount() int {
	return len(c.messages)
}
