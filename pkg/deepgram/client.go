// Package deepgram transcribes practice turns with Deepgram live streaming.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/voice_practice/pkg/audio"
	"example.com/voice_practice/pkg/stt"
)

const deepgramWSURL = "wss://api.deepgram.com/v1/listen"

// Client is a Deepgram real-time STT client for one turn
type Client struct {
	apiKey     string
	endpoint   string
	sampleRate int
	conn       *websocket.Conn
	transcript stt.Transcript
	mu         sync.Mutex
	connected  bool
	finished   chan struct{}
	logger     zerolog.Logger
}

// MessageType is used to determine the type of Deepgram message
type MessageType struct {
	Type string `json:"type"`
}

// TranscriptResponse represents Deepgram's transcript response
type TranscriptResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal bool `json:"is_final"`
}

// NewClient creates a new Deepgram client
func NewClient(config stt.Config) *Client {
	if config.SampleRate == 0 {
		config.SampleRate = audio.TargetSampleRate
	}
	if config.URL == "" {
		config.URL = deepgramWSURL
	}
	return &Client{
		apiKey:     config.APIKey,
		endpoint:   config.URL,
		sampleRate: config.SampleRate,
		finished:   make(chan struct{}),
		logger:     log.With().Str("component", "deepgram").Logger(),
	}
}

// Connect establishes the WebSocket connection to Deepgram
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid deepgram url: %w", err)
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(c.sampleRate))
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+c.apiKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("deepgram connection failed: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.finished = make(chan struct{})

	go c.readResponses(conn, c.finished)

	c.logger.Debug().Int("sample_rate", c.sampleRate).Msg("connected")
	return nil
}

func (c *Client) readResponses(conn *websocket.Conn, finished chan struct{}) {
	defer close(finished)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("read ended")
			}
			return
		}

		var msgType MessageType
		if err := json.Unmarshal(message, &msgType); err != nil {
			continue
		}
		if msgType.Type != "Results" {
			continue
		}

		var resp TranscriptResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			continue
		}
		if len(resp.Channel.Alternatives) == 0 {
			continue
		}
		text := resp.Channel.Alternatives[0].Transcript
		if resp.IsFinal {
			c.transcript.AddFinal(text)
		} else {
			c.transcript.SetPending(text)
		}
	}
}

// SendAudio sends one PCM16 chunk to Deepgram
func (c *Client) SendAudio(pcm []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return stt.ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, audio.PCM16Bytes(pcm))
}

// Finish asks Deepgram to flush and waits for the stream to end
func (c *Client) Finish(ctx context.Context) (string, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return c.transcript.Text(), nil
	}
	err := c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "CloseStream"}`))
	finished := c.finished
	c.mu.Unlock()

	if err != nil {
		c.Close()
		return c.transcript.Text(), fmt.Errorf("deepgram close stream failed: %w", err)
	}

	select {
	case <-finished:
	case <-ctx.Done():
		err = ctx.Err()
	}
	c.Close()
	return c.transcript.Text(), err
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	return c.conn.Close()
}
