// Package evi is a voice.Session backed by the Hume EVI chat websocket.
package evi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
)

// DefaultURL is the Hume EVI chat endpoint.
const DefaultURL = "wss://api.hume.ai/v0/evi/chat"

const (
	sendBufferSize = 64
	writeTimeout   = 10 * time.Second
	readLimit      = 4 << 20
)

// Error codes reported through Handlers.OnError.
const (
	ErrCodeConnectFailed = "connect_failed"
	ErrCodeTransport     = "transport_error"
)

// ErrSendQueueFull is returned when outbound frames pile up faster than the
// socket drains them.
var ErrSendQueueFull = errors.New("evi: send queue full")

// Config selects the endpoint and credentials.
type Config struct {
	URL      string
	APIKey   string
	ConfigID string
	Dialer   *websocket.Dialer
}

// Client is one EVI chat connection.
type Client struct {
	cfg Config

	mu         sync.RWMutex
	handlers   voice.Handlers
	state      voice.ReadyState
	conn       *connection
	cancelDial context.CancelFunc
	muted      bool
	audioMuted bool
}

var _ voice.Session = (*Client)(nil)

// connection is one dialed socket with its own write pump.
type connection struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// New returns an idle client.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Client{cfg: cfg}
}

// SetHandlers installs the callbacks. Call it before Connect.
func (c *Client) SetHandlers(h voice.Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

func (c *Client) chatURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid evi url: %w", err)
	}
	q := u.Query()
	if c.cfg.APIKey != "" {
		q.Set("api_key", c.cfg.APIKey)
	}
	if c.cfg.ConfigID != "" {
		q.Set("config_id", c.cfg.ConfigID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials in the background. A client that is already connecting or
// open ignores the call.
func (c *Client) Connect(ctx context.Context) error {
	target, err := c.chatURL()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == voice.ReadyStateConnecting || c.state == voice.ReadyStateOpen {
		c.mu.Unlock()
		return nil
	}
	dialCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.state = voice.ReadyStateConnecting
	// A disconnected socket may still be draining; it no longer reports.
	c.conn = nil
	c.cancelDial = cancel
	c.mu.Unlock()

	go c.dial(dialCtx, cancel, target)
	return nil
}

func (c *Client) dial(ctx context.Context, cancel context.CancelFunc, target string) {
	defer cancel()

	ws, _, err := c.cfg.Dialer.DialContext(ctx, target, nil)

	c.mu.Lock()
	aborted := c.state != voice.ReadyStateConnecting || ctx.Err() != nil
	if err != nil || aborted {
		if !aborted {
			c.state = voice.ReadyStateClosed
		}
		h := c.handlers
		c.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		if err != nil && !aborted {
			log.Printf("❌ EVI connect failed: %v", err)
			if h.OnError != nil {
				h.OnError(messages.ErrorPayload{Code: ErrCodeConnectFailed, Message: err.Error()})
			}
			if h.OnStateChange != nil {
				h.OnStateChange()
			}
		}
		return
	}

	ws.SetReadLimit(readLimit)
	conn := &connection{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	c.conn = conn
	c.state = voice.ReadyStateOpen
	c.cancelDial = nil
	h := c.handlers
	c.mu.Unlock()

	log.Printf("✅ Connected to EVI (%s)", c.cfg.URL)
	go c.writePump(conn)

	if h.OnOpen != nil {
		h.OnOpen()
	}
	if h.OnStateChange != nil {
		h.OnStateChange()
	}
	c.readLoop(conn)
}

// readLoop delivers inbound frames until the socket fails, then reports the
// close. It runs on the dial goroutine so callbacks keep transport order.
func (c *Client) readLoop(conn *connection) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			c.finish(conn, err)
			return
		}
		msg, err := messages.ParseTransportMessage(data)
		if err != nil {
			log.Printf("⚠️ Dropping EVI frame: %v", err)
			continue
		}
		c.mu.RLock()
		h := c.handlers
		c.mu.RUnlock()
		if h.OnMessage != nil {
			h.OnMessage(msg)
		}
	}
}

func (c *Client) finish(conn *connection, readErr error) {
	select {
	case <-conn.done:
		readErr = nil
	default:
	}
	conn.close()
	conn.ws.Close()

	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
		c.state = voice.ReadyStateClosed
	}
	h := c.handlers
	c.mu.Unlock()

	// A later Connect superseded this socket; its close is not news.
	if !current {
		return
	}

	if readErr != nil && !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Printf("❌ EVI read error: %v", readErr)
		if h.OnError != nil {
			h.OnError(messages.ErrorPayload{Code: ErrCodeTransport, Message: readErr.Error()})
		}
	}
	log.Printf("🔌 EVI connection closed")
	if h.OnClose != nil {
		h.OnClose()
	}
	if h.OnStateChange != nil {
		h.OnStateChange()
	}
}

// writePump handles all outgoing frames in a single goroutine.
func (c *Client) writePump(conn *connection) {
	defer func() {
		conn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.ws.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		conn.ws.Close()
	}()

	for {
		select {
		case <-conn.done:
			return
		case data := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("❌ EVI write error: %v", err)
				return
			}
		}
	}
}

// Disconnect closes the socket or aborts a pending dial. The close is
// reported through OnClose once the read loop observes it.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancelDial
	if c.state == voice.ReadyStateConnecting || c.state == voice.ReadyStateOpen {
		c.state = voice.ReadyStateClosed
	}
	c.cancelDial = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.close()
	}
	return nil
}

func (c *Client) send(frame any) error {
	data, err := sonic.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode evi frame: %w", err)
	}
	return c.enqueue(data)
}

// enqueue hands a frame to the write pump without blocking.
func (c *Client) enqueue(data []byte) error {
	c.mu.RLock()
	conn := c.conn
	open := c.state == voice.ReadyStateOpen
	c.mu.RUnlock()
	if !open || conn == nil {
		return voice.ErrNotConnected
	}

	select {
	case <-conn.done:
		return voice.ErrNotConnected
	default:
	}
	select {
	case conn.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Mute marks the microphone muted. EVI has no mute frame; the flag is local.
func (c *Client) Mute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = true
}

// Unmute clears the microphone mute flag.
func (c *Client) Unmute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = false
}

// MuteAudio marks assistant audio playback muted.
func (c *Client) MuteAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioMuted = true
}

// UnmuteAudio clears the playback mute flag.
func (c *Client) UnmuteAudio() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioMuted = false
}

// PauseAssistant sends pause_assistant_message.
func (c *Client) PauseAssistant() error {
	return c.send(controlFrame{Type: TypePauseAssistant})
}

// ResumeAssistant sends resume_assistant_message.
func (c *Client) ResumeAssistant() error {
	return c.send(controlFrame{Type: TypeResumeAssistant})
}

// SendUserInput sends a user_input frame.
func (c *Client) SendUserInput(text string) error {
	return c.send(textFrame{Type: TypeUserInput, Text: text})
}

// SendAssistantInput sends an assistant_input frame.
func (c *Client) SendAssistantInput(text string) error {
	return c.send(textFrame{Type: TypeAssistantInput, Text: text})
}

// SendSessionSettings sends settings as a session_settings frame.
func (c *Client) SendSessionSettings(settings json.RawMessage) error {
	frame, err := sessionSettingsFrame(settings)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// SendToolMessage forwards a tool_response or tool_error object as is.
func (c *Client) SendToolMessage(msg json.RawMessage) error {
	if err := checkToolMessage(msg); err != nil {
		return err
	}
	return c.enqueue(msg)
}

// IsMuted reports the microphone mute flag.
func (c *Client) IsMuted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// IsAudioMuted reports the playback mute flag.
func (c *Client) IsAudioMuted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.audioMuted
}

// ReadyState returns the connection state.
func (c *Client) ReadyState() voice.ReadyState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
