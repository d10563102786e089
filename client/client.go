package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/voice_practice/pkg/audio"
	"example.com/voice_practice/pkg/protocol"
)

// ErrNotConnected marks a send attempted while the channel is not open
var ErrNotConnected = errors.New("channel not open")

// OpenCallback is called once the channel is open
type OpenCallback func()

// MessageCallback is called for every decoded inbound control message
type MessageCallback func(msg protocol.Inbound)

// CloseCallback is called once when the channel closes, for any cause
type CloseCallback func(reason string)

// ErrorCallback is called on channel errors; a close always follows
type ErrorCallback func(err error)

// Config holds channel settings
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Client owns the conversation channel to the practice service
type Client struct {
	url              string
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	conn             *websocket.Conn
	onOpen           OpenCallback
	onMessage        MessageCallback
	onClose          CloseCallback
	onError          ErrorCallback
	mu               sync.Mutex
	writeMu          sync.Mutex // gorilla allows one concurrent writer
	connected        bool
	done             chan struct{}
	closeOnce        *sync.Once
	logger           zerolog.Logger
}

// NewClient creates a client for the given channel URL
func NewClient(config Config) *Client {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 5 * time.Second
	}
	return &Client{
		url:              config.URL,
		handshakeTimeout: config.HandshakeTimeout,
		writeTimeout:     config.WriteTimeout,
		done:             make(chan struct{}),
		logger:           log.With().Str("component", "client").Logger(),
	}
}

// OnOpen sets the callback for channel open
func (c *Client) OnOpen(callback OpenCallback) {
	c.onOpen = callback
}

// OnMessage sets the callback for inbound control messages
func (c *Client) OnMessage(callback MessageCallback) {
	c.onMessage = callback
}

// OnClose sets the callback for channel close
func (c *Client) OnClose(callback CloseCallback) {
	c.onClose = callback
}

// OnError sets the callback for channel errors
func (c *Client) OnError(callback ErrorCallback) {
	c.onError = callback
}

// Connect opens the channel and starts reading inbound messages
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.done = make(chan struct{})
	c.closeOnce = &sync.Once{}
	done, once := c.done, c.closeOnce
	c.mu.Unlock()

	go c.handleMessages(conn, done, once)

	c.logger.Info().Str("url", c.url).Msg("channel open")
	if c.onOpen != nil {
		c.onOpen()
	}
	return nil
}

func (c *Client) handleMessages(conn *websocket.Conn, done chan struct{}, once *sync.Once) {
	reason := "closed"
	defer func() {
		c.finish(conn, once, reason)
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				reason = "client disconnect"
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				var ce *websocket.CloseError
				if errors.As(err, &ce) && ce.Text != "" {
					reason = ce.Text
				}
				return
			}
			c.logger.Warn().Err(err).Msg("read error")
			if c.onError != nil {
				c.onError(err)
			}
			reason = err.Error()
			return
		}

		if mt != websocket.TextMessage {
			c.logger.Debug().Int("bytes", len(data)).Msg("ignoring binary message")
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed message")
			continue
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

// finish marks the connection closed and reports it exactly once
func (c *Client) finish(conn *websocket.Conn, once *sync.Once, reason string) {
	once.Do(func() {
		c.mu.Lock()
		if c.conn == conn {
			c.connected = false
		}
		c.mu.Unlock()
		conn.Close()

		c.logger.Info().Str("reason", reason).Msg("channel closed")
		if c.onClose != nil {
			c.onClose(reason)
		}
	})
}

// Send writes a control message. It is a no-op when the channel is not open.
func (c *Client) Send(msg protocol.Outbound) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	return dropIfClosed(c.write(websocket.TextMessage, data), msg.Type, c.logger)
}

// SendAudio writes one PCM16 chunk as a binary message with no header.
// It is a no-op when the channel is not open.
func (c *Client) SendAudio(pcm []int16) error {
	if len(pcm) == 0 {
		return nil
	}
	return dropIfClosed(c.write(websocket.BinaryMessage, audio.PCM16Bytes(pcm)), "audio", c.logger)
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	open := c.connected
	c.mu.Unlock()

	if !open || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return conn.WriteMessage(messageType, data)
}

// dropIfClosed turns ErrNotConnected into a silent drop
func dropIfClosed(err error, kind string, logger zerolog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotConnected) {
		logger.Debug().Str("kind", kind).Msg("channel not open, dropping send")
		return nil
	}
	return fmt.Errorf("write %s failed: %w", kind, err)
}

// Close sends a close frame with reason and tears the connection down
func (c *Client) Close(reason string) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	once := c.closeOnce
	close(c.done)
	c.connected = false
	c.mu.Unlock()

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.finish(conn, once, reason)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}

// IsOpen returns whether the channel is open
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
