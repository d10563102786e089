// Package assemblyai transcribes practice turns with AssemblyAI Universal Streaming.
package assemblyai

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

// Universal Streaming API endpoint
const assemblyWSURL = "wss://streaming.assemblyai.com/v3/ws"

// minAudioBytes is the smallest chunk sent (100ms at 16kHz mono).
// AssemblyAI accepts between 50 and 1000ms per message.
const minAudioBytes = 3200

// Client is an AssemblyAI Universal Streaming STT client for one turn
type Client struct {
	apiKey     string
	endpoint   string
	sampleRate int
	conn       *websocket.Conn
	transcript stt.Transcript
	mu         sync.Mutex
	connected  bool
	finished   chan struct{}
	buffer     []byte
	logger     zerolog.Logger
}

// BeginMessage is sent when the session starts
type BeginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

// TurnMessage represents a Universal Streaming transcript update
type TurnMessage struct {
	Type                string  `json:"type"`
	TurnOrder           int     `json:"turn_order"`
	Transcript          string  `json:"transcript"`
	EndOfTurn           bool    `json:"end_of_turn"`
	EndOfTurnConfidence float64 `json:"end_of_turn_confidence"`
	TurnIsFormatted     bool    `json:"turn_is_formatted"`
}

// NewClient creates a new AssemblyAI client
func NewClient(config stt.Config) *Client {
	if config.SampleRate == 0 {
		config.SampleRate = audio.TargetSampleRate
	}
	if config.URL == "" {
		config.URL = assemblyWSURL
	}
	return &Client{
		apiKey:     config.APIKey,
		endpoint:   config.URL,
		sampleRate: config.SampleRate,
		finished:   make(chan struct{}),
		buffer:     make([]byte, 0, minAudioBytes*2),
		logger:     log.With().Str("component", "assemblyai").Logger(),
	}
}

// Connect establishes the WebSocket connection to AssemblyAI
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid assemblyai url: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(c.sampleRate))
	q.Set("format_turns", "true")
	u.RawQuery = q.Encode()

	// The key goes in the Authorization header without a prefix
	header := http.Header{}
	header.Set("Authorization", c.apiKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("assemblyai connection failed: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.finished = make(chan struct{})
	c.buffer = c.buffer[:0]

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

		var base struct {
			Type  string `json:"type"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(message, &base); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse message")
			continue
		}

		switch base.Type {
		case "Begin":
			var begin BeginMessage
			if err := json.Unmarshal(message, &begin); err == nil {
				c.logger.Debug().Str("session", begin.ID).Msg("session started")
			}

		case "Turn":
			var turn TurnMessage
			if err := json.Unmarshal(message, &turn); err != nil {
				continue
			}
			// Unformatted end-of-turn messages are followed by a formatted one
			if turn.EndOfTurn && turn.TurnIsFormatted {
				c.transcript.AddFinal(turn.Transcript)
			} else {
				c.transcript.SetPending(turn.Transcript)
			}

		case "Termination":
			return

		default:
			if base.Error != "" {
				c.logger.Warn().Str("error", base.Error).Msg("provider error")
			}
		}
	}
}

// SendAudio buffers a PCM16 chunk and sends once at least 100ms are pending
func (c *Client) SendAudio(pcm []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return stt.ErrNotConnected
	}

	c.buffer = append(c.buffer, audio.PCM16Bytes(pcm)...)
	if len(c.buffer) < minAudioBytes {
		return nil
	}
	return c.flushLocked()
}

func (c *Client) flushLocked() error {
	if len(c.buffer) == 0 {
		return nil
	}
	err := c.conn.WriteMessage(websocket.BinaryMessage, c.buffer)
	c.buffer = c.buffer[:0]
	return err
}

// Finish sends any buffered audio, terminates the session and waits for
// the final transcript
func (c *Client) Finish(ctx context.Context) (string, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return c.transcript.Text(), nil
	}
	err := c.flushLocked()
	if err == nil {
		err = c.conn.WriteJSON(map[string]string{"type": "Terminate"})
	}
	finished := c.finished
	c.mu.Unlock()

	if err != nil {
		c.Close()
		return c.transcript.Text(), fmt.Errorf("assemblyai terminate failed: %w", err)
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
