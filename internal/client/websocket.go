// ABOUTME: WebSocket client for the voice relay
// ABOUTME: Handles connection, handshake, keepalive and message routing
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/voicebridge/pkg/protocol"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when sending on a closed connection
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	ServerAddr string
	Path       string
	ClientID   string
	Name       string
	DeviceInfo protocol.DeviceInfo
	Capture    protocol.AudioFormat
	Playback   protocol.AudioFormat

	// PingInterval is the keepalive period (default: 20s)
	PingInterval time.Duration

	// HandshakeTimeout bounds the wait for the welcome (default: 5s)
	HandshakeTimeout time.Duration

	// WriteTimeout bounds every write (default: 2s)
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// Client is a participant connection to the relay
type Client struct {
	config Config
	logger *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	sessionID string

	// Inbound traffic
	Audio       chan protocol.Packet
	Transcripts chan protocol.Message

	lastPong atomic.Int64
	received atomic.Int64
	sent     atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/voice"
	}
	if config.PingInterval == 0 {
		config.PingInterval = 20 * time.Second
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 5 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 2 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:      config,
		logger:      config.Logger,
		Audio:       make(chan protocol.Packet, 100),
		Transcripts: make(chan protocol.Message, 10),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	c.logger.Info("connecting", "url", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	c.lastPong.Store(time.Now().UnixNano())

	go c.readMessages()
	go c.keepalive()

	return nil
}

// handshake sends hello and waits for the welcome
func (c *Client) handshake() error {
	hello, err := protocol.NewMessage(protocol.TypeHello, protocol.Hello{
		ClientID:   c.config.ClientID,
		Name:       c.config.Name,
		DeviceInfo: c.config.DeviceInfo,
		Capture:    c.config.Capture,
		Playback:   c.config.Playback,
	})
	if err != nil {
		return err
	}

	if err := c.sendJSON(hello); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read welcome: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return fmt.Errorf("failed to parse welcome: %w", err)
	}

	switch msg.Type {
	case protocol.TypeWelcome:
	case protocol.TypeError:
		return fmt.Errorf("relay refused connection: %s", msg.Text)
	default:
		return fmt.Errorf("expected welcome, got %s", msg.Type)
	}

	var welcome protocol.Welcome
	if err := msg.DecodePayload(&welcome); err != nil {
		return fmt.Errorf("invalid welcome: %w", err)
	}

	c.mu.Lock()
	c.sessionID = welcome.SessionID
	c.mu.Unlock()

	c.logger.Info("handshake complete", "session", welcome.SessionID, "relay", welcome.Name)
	return nil
}

// Transmit sends one capture packet. It satisfies voice.Transmitter.
func (c *Client) Transmit(pkt protocol.Packet) error {
	typ := websocket.TextMessage
	if pkt.Binary {
		typ = websocket.BinaryMessage
	}
	if err := c.write(typ, pkt.Data); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}

// SendTranscript sends a transcript line
func (c *Client) SendTranscript(speaker, text string) error {
	return c.sendJSON(protocol.Message{Type: protocol.TypeTranscript, Speaker: speaker, Text: text})
}

// sendJSON sends a text message
func (c *Client) sendJSON(msg protocol.Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// write serializes writes; gorilla connections allow one concurrent writer
func (c *Client) write(messageType int, data []byte) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return conn.WriteMessage(messageType, data)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer close(c.done)
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				c.logger.Warn("read error", "error", err)
			}
			return
		}
		c.received.Add(1)

		switch messageType {
		case websocket.BinaryMessage:
			c.deliverAudio(protocol.Packet{Binary: true, Data: data})
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// deliverAudio queues an inbound audio packet without blocking the reader
// behind a slow consumer for longer than the connection lives
func (c *Client) deliverAudio(pkt protocol.Packet) {
	select {
	case c.Audio <- pkt:
	case <-c.ctx.Done():
	}
}

// handleJSONMessage routes text messages
func (c *Client) handleJSONMessage(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		c.logger.Warn("failed to parse message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeAudio:
		c.deliverAudio(protocol.Packet{Data: data})

	case protocol.TypeTranscript:
		select {
		case c.Transcripts <- msg:
		default:
			c.logger.Debug("transcript queue full, dropping line")
		}

	case protocol.TypePing:
		if err := c.sendJSON(protocol.Message{Type: protocol.TypePong}); err != nil {
			c.logger.Debug("failed to answer ping", "error", err)
		}

	case protocol.TypePong:
		c.lastPong.Store(time.Now().UnixNano())

	case protocol.TypeError:
		c.logger.Warn("relay error", "message", msg.Text)

	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// keepalive pings the relay until the connection ends
func (c *Client) keepalive() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendJSON(protocol.Message{Type: protocol.TypePing}); err != nil {
				c.logger.Warn("keepalive failed", "error", err)
				return
			}
		}
	}
}

// LastPong returns when the relay last answered a ping
func (c *Client) LastPong() time.Time {
	return time.Unix(0, c.lastPong.Load())
}

// SessionID returns the id assigned by the relay
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Counts returns the number of messages received and packets sent
func (c *Client) Counts() (received, sent int64) {
	return c.received.Load(), c.sent.Load()
}

// Done is closed when the reader exits after a successful Connect
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	c.cancel()

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.logger.Info("connection closed")
	return err
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
