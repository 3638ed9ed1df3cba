// ABOUTME: Development voice relay
// ABOUTME: Accepts participants over WebSocket, streams narration to them and meters their microphones
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/voicebridge/internal/discovery"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/decode"
	"github.com/Resonate-Protocol/voicebridge/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	writeDeadline = 10 * time.Second
	sendBuffer    = 100
)

// Config holds relay configuration
type Config struct {
	// Addr is the listen address (default: ":8927")
	Addr string
	Name string

	// Path serves the WebSocket endpoint (default: "/voice")
	Path string

	EnableMDNS bool
	UseTUI     bool

	Envelope  protocol.Envelope
	Narration NarrationConfig

	Logger *slog.Logger
}

// Relay is a minimal voice relay for running participants end to end
type Relay struct {
	config   Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	participants   map[string]*participant
	participantsMu sync.RWMutex

	narrator *Narrator
	tui      *TUI

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// participant is one connected client
type participant struct {
	ID      string
	Name    string
	Session string
	conn    *websocket.Conn

	sendChan chan outbound
	closed   bool
	mu       sync.Mutex

	codec    string
	decoder  decode.Decoder
	level    atomic.Uint64
	frames   atomic.Int64
	rejected atomic.Int64
}

// outbound is a queued write
type outbound struct {
	binary bool
	data   []byte
}

// ParticipantInfo summarizes a participant for display
type ParticipantInfo struct {
	Name     string
	ID       string
	Codec    string
	Level    float64
	Frames   int64
	Rejected int64
}

// New creates a relay
func New(config Config) (*Relay, error) {
	if config.Addr == "" {
		config.Addr = ":8927"
	}
	if config.Path == "" {
		config.Path = "/voice"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	r := &Relay{
		config:       config,
		logger:       config.Logger,
		mux:          http.NewServeMux(),
		participants: make(map[string]*participant),
		stopChan:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			// Participants run on trusted local networks; browsers send an
			// Origin and native clients do not
			CheckOrigin: func(r *http.Request) bool {
				if origin := r.Header.Get("Origin"); origin != "" {
					config.Logger.Debug("accepting websocket origin", "origin", origin)
				}
				return true
			},
		},
	}

	narrator, err := NewNarrator(config.Narration, config.Envelope, config.Logger, r.broadcast, r.broadcastMessage)
	if err != nil {
		return nil, err
	}
	r.narrator = narrator

	r.mux.HandleFunc(config.Path, r.handleWebSocket)
	return r, nil
}

// Handler returns the relay's HTTP handler
func (r *Relay) Handler() http.Handler {
	return r.mux
}

// Narrator returns the narration engine
func (r *Relay) Narrator() *Narrator {
	return r.narrator
}

// Run serves until ctx ends, Stop is called or the TUI quits
func (r *Relay) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.config.Addr, err)
	}
	return r.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (r *Relay) Serve(ctx context.Context, ln net.Listener) error {
	port := ln.Addr().(*net.TCPAddr).Port
	r.logger.Info("relay starting", "name", r.config.Name, "addr", ln.Addr().String(), "path", r.config.Path)

	if r.config.UseTUI {
		r.tui = NewTUI(r.config.Name, port)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.tui.Start(); err != nil {
				r.logger.Error("relay tui failed", "error", err)
			}
		}()
	}

	var mdnsManager *discovery.Manager
	if r.config.EnableMDNS {
		mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: r.config.Name,
			Port:        port,
			Path:        r.config.Path,
			Logger:      r.logger,
		})
		if err := mdnsManager.Advertise(); err != nil {
			r.logger.Warn("failed to start mDNS advertisement", "error", err)
		} else {
			r.logger.Info("mDNS advertisement started")
		}
	}

	httpServer := &http.Server{Handler: r.mux}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return r.narrator.Run(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				r.updateTUI()
			}
		}
	})

	g.Go(func() error {
		var tuiQuit <-chan struct{}
		if r.tui != nil {
			tuiQuit = r.tui.QuitChan()
		}

		select {
		case <-gctx.Done():
		case <-r.stopChan:
			r.logger.Info("relay shutting down")
		case <-tuiQuit:
			r.logger.Info("TUI quit requested, shutting down")
		}

		r.shutdownMu.Lock()
		r.isShutdown = true
		r.shutdownMu.Unlock()

		if r.tui != nil {
			r.tui.Stop()
		}
		if mdnsManager != nil {
			mdnsManager.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("HTTP server shutdown error", "error", err)
		}
		r.closeParticipants()
		return context.Canceled
	})

	err := g.Wait()
	r.wg.Wait()
	r.logger.Info("relay stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop stops the relay
func (r *Relay) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}

// handleWebSocket upgrades and serves one participant
func (r *Relay) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	r.shutdownMu.RLock()
	shutdown := r.isShutdown
	r.shutdownMu.RUnlock()
	if shutdown {
		http.Error(w, "relay shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade error", "error", err)
		return
	}

	r.logger.Info("new connection", "remote", req.RemoteAddr)
	r.handleConnection(conn)
}

// handleConnection runs the handshake and then the read loop
func (r *Relay) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	p, err := r.handshake(conn)
	if err != nil {
		r.logger.Warn("handshake failed", "error", err)
		return
	}

	defer func() {
		r.participantsMu.Lock()
		delete(r.participants, p.ID)
		r.participantsMu.Unlock()
		p.close()
		r.logger.Info("participant disconnected", "name", p.Name, "frames", p.frames.Load())
		r.updateTUI()
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.writer(p)
	}()

	r.updateTUI()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				r.logger.Warn("websocket error", "name", p.Name, "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			r.handleAudio(p, protocol.Packet{Binary: true, Data: data})
		case websocket.TextMessage:
			r.handleText(p, data)
		}
	}
}

// handshake reads the hello, registers the participant and answers welcome
func (r *Relay) handshake(conn *websocket.Conn) (*participant, error) {
	conn.SetReadDeadline(time.Now().Add(writeDeadline))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return nil, err
	}
	if msg.Type != protocol.TypeHello {
		reject(conn, "expected hello")
		return nil, fmt.Errorf("expected hello, got %s", msg.Type)
	}

	var hello protocol.Hello
	if err := msg.DecodePayload(&hello); err != nil {
		reject(conn, "invalid hello")
		return nil, err
	}
	if hello.ClientID == "" {
		reject(conn, "missing client id")
		return nil, fmt.Errorf("hello missing client id")
	}
	if hello.Name == "" {
		reject(conn, "missing name")
		return nil, fmt.Errorf("hello missing name")
	}

	codec := hello.Capture.Codec
	if codec == "" {
		codec = "pcm"
	}

	p := &participant{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Session:  uuid.New().String(),
		conn:     conn,
		sendChan: make(chan outbound, sendBuffer),
		codec:    codec,
	}

	r.participantsMu.Lock()
	if existing, ok := r.participants[p.ID]; ok {
		r.participantsMu.Unlock()
		reject(conn, "client id already connected")
		return nil, fmt.Errorf("duplicate client id %s (connected as %s)", p.ID, existing.Name)
	}
	r.participants[p.ID] = p
	r.participantsMu.Unlock()

	welcome, err := protocol.NewMessage(protocol.TypeWelcome, protocol.Welcome{
		SessionID: p.Session,
		Name:      r.config.Name,
	})
	if err == nil {
		var out []byte
		if out, err = welcome.Marshal(); err == nil {
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			err = conn.WriteMessage(websocket.TextMessage, out)
		}
	}
	if err != nil {
		r.participantsMu.Lock()
		delete(r.participants, p.ID)
		r.participantsMu.Unlock()
		return nil, fmt.Errorf("failed to send welcome: %w", err)
	}

	r.logger.Info("participant joined",
		"name", p.Name,
		"id", p.ID,
		"session", p.Session,
		"software", hello.DeviceInfo.SoftwareVersion,
		"codec", codec)
	return p, nil
}

// reject sends an error message before the connection is dropped
func reject(conn *websocket.Conn, text string) {
	data, err := protocol.Message{Type: protocol.TypeError, Text: text}.Marshal()
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	conn.WriteMessage(websocket.TextMessage, data)
}

// writer drains the participant's send queue
func (r *Relay) writer(p *participant) {
	for out := range p.sendChan {
		typ := websocket.TextMessage
		if out.binary {
			typ = websocket.BinaryMessage
		}
		p.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := p.conn.WriteMessage(typ, out.data); err != nil {
			r.logger.Warn("write failed", "name", p.Name, "error", err)
			p.conn.Close()
			return
		}
	}
}

// handleText routes a text message from a participant
func (r *Relay) handleText(p *participant, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		r.logger.Warn("bad message", "name", p.Name, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeAudio:
		r.handleAudio(p, protocol.Packet{Data: data})
	case protocol.TypePing:
		r.sendMessage(p, protocol.Message{Type: protocol.TypePong})
	case protocol.TypePong:
	case protocol.TypeTranscript:
		if msg.Speaker == "" {
			msg.Speaker = p.Name
		}
		r.broadcastMessage(msg)
	default:
		r.logger.Debug("unknown message type", "name", p.Name, "type", msg.Type)
	}
}

// handleAudio decodes an inbound capture frame to meter its level
func (r *Relay) handleAudio(p *participant, pkt protocol.Packet) {
	frame, err := protocol.Unwrap(pkt, audio.CaptureRate)
	if err == nil && frame.SampleRate != audio.CaptureRate {
		err = fmt.Errorf("unexpected sample rate %d", frame.SampleRate)
	}

	var samples []float32
	if err == nil {
		samples, err = p.decode(frame)
	}
	if err != nil {
		if p.rejected.Add(1) == 1 {
			r.logger.Warn("rejecting capture frame", "name", p.Name, "error", err)
		}
		return
	}

	p.frames.Add(1)
	p.level.Store(math.Float64bits(audio.RMS(samples)))
}

// decode lazily creates the participant's capture decoder
func (p *participant) decode(frame protocol.Frame) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.decoder == nil || frame.Codec != p.codec {
		if p.decoder != nil {
			p.decoder.Close()
		}
		dec, err := decode.New(audio.CaptureFormat(frame.Codec))
		if err != nil {
			p.decoder = nil
			return nil, err
		}
		p.decoder = dec
		p.codec = frame.Codec
	}
	return p.decoder.Decode(frame.Data)
}

// enqueue queues a write without blocking the narration clock
func (p *participant) enqueue(out outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("participant %s disconnected", p.Name)
	}
	select {
	case p.sendChan <- out:
		return nil
	default:
		return fmt.Errorf("participant %s send buffer full", p.Name)
	}
}

// close stops the writer and releases the decoder
func (p *participant) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.sendChan)
	if p.decoder != nil {
		p.decoder.Close()
		p.decoder = nil
	}
}

// sendMessage queues a text message for one participant
func (r *Relay) sendMessage(p *participant, msg protocol.Message) {
	data, err := msg.Marshal()
	if err != nil {
		r.logger.Error("failed to marshal message", "error", err)
		return
	}
	if err := p.enqueue(outbound{data: data}); err != nil {
		r.logger.Debug("dropping message", "type", msg.Type, "error", err)
	}
}

// broadcast queues an audio packet for every participant
func (r *Relay) broadcast(pkt protocol.Packet) {
	r.participantsMu.RLock()
	defer r.participantsMu.RUnlock()

	for _, p := range r.participants {
		if err := p.enqueue(outbound{binary: pkt.Binary, data: pkt.Data}); err != nil {
			r.logger.Debug("dropping narration frame", "error", err)
		}
	}
}

// broadcastMessage queues a text message for every participant
func (r *Relay) broadcastMessage(msg protocol.Message) {
	r.participantsMu.RLock()
	defer r.participantsMu.RUnlock()

	for _, p := range r.participants {
		r.sendMessage(p, msg)
	}
}

// closeParticipants closes every live connection so read loops exit
func (r *Relay) closeParticipants() {
	r.participantsMu.RLock()
	defer r.participantsMu.RUnlock()

	for _, p := range r.participants {
		p.conn.Close()
	}
}

// Participants returns a snapshot of connected participants
func (r *Relay) Participants() []ParticipantInfo {
	r.participantsMu.RLock()
	defer r.participantsMu.RUnlock()

	infos := make([]ParticipantInfo, 0, len(r.participants))
	for _, p := range r.participants {
		p.mu.Lock()
		codec := p.codec
		p.mu.Unlock()

		infos = append(infos, ParticipantInfo{
			Name:     p.Name,
			ID:       p.ID,
			Codec:    codec,
			Level:    math.Float64frombits(p.level.Load()),
			Frames:   p.frames.Load(),
			Rejected: p.rejected.Load(),
		})
	}
	return infos
}

// updateTUI sends current relay state to the TUI
func (r *Relay) updateTUI() {
	if r.tui == nil {
		return
	}
	r.tui.Update(Status{
		Name:         r.config.Name,
		Participants: r.Participants(),
		Speaking:     r.narrator.Speaking(),
		Line:         r.narrator.Line(),
		FramesSent:   r.narrator.Sent(),
	})
}
