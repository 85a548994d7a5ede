// Package host is the client side of the bridge protocol. A host keeps its
// own grow-only command list, resends it whole on every change, and reads
// back full snapshots of the session event log.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/jerhadf/voice-computer-use/messages"
)

const (
	writeTimeout = 10 * time.Second
	valueBuffer  = 16
	errorBuffer  = 128
)

// ErrClosed is returned after Close or once the server went away.
var ErrClosed = errors.New("host: connection closed")

// Config describes the bridge to attach to.
type Config struct {
	URL        string
	HumeAPIKey string
	ConfigID   string
	// ListenTo nil keeps the server default filter.
	ListenTo []string
	Debug    bool
}

// Client is one host connection.
type Client struct {
	conn *websocket.Conn

	mu   sync.Mutex
	args messages.Args

	sessionMu sync.RWMutex
	sessionID string

	values chan messages.ComponentValue
	debug  chan messages.DebugPayload
	errs   chan messages.ErrorPayload
	status chan messages.StatusPayload

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a bridge server.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	c := &Client{
		conn: conn,
		args: messages.Args{
			Commands:   messages.CommandList{},
			ListenTo:   cfg.ListenTo,
			HumeAPIKey: cfg.HumeAPIKey,
			ConfigID:   cfg.ConfigID,
			Debug:      cfg.Debug,
		},
		values: make(chan messages.ComponentValue, valueBuffer),
		debug:  make(chan messages.DebugPayload, valueBuffer),
		errs:   make(chan messages.ErrorPayload, errorBuffer),
		status: make(chan messages.StatusPayload, valueBuffer),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Values delivers published snapshots. When the reader falls behind, older
// snapshots are dropped; each one replaces the previous anyway.
func (c *Client) Values() <-chan messages.ComponentValue { return c.values }

// DebugViews delivers bridge debug views when Config.Debug is set.
func (c *Client) DebugViews() <-chan messages.DebugPayload { return c.debug }

// Errors delivers error frames from the server in order. Unlike snapshots,
// errors are never evicted: when the reader falls behind, new ones are
// dropped and logged.
func (c *Client) Errors() <-chan messages.ErrorPayload { return c.errs }

// Status delivers status frames (connected, pong).
func (c *Client) Status() <-chan messages.StatusPayload { return c.status }

// Done closes when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// SessionID returns the id announced by the server, if any yet.
func (c *Client) SessionID() string {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.sessionID
}

// Commands returns a copy of every command sent so far.
func (c *Client) Commands() messages.CommandList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(messages.CommandList(nil), c.args.Commands...)
}

// Send appends cmds to the command list and sends the whole list.
func (c *Client) Send(cmds ...messages.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.args.Commands = append(c.args.Commands, cmds...)
	return c.writeArgsLocked()
}

// SetListenTo replaces the filter and resends the current arguments.
func (c *Client) SetListenTo(tokens []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.args.ListenTo = tokens
	return c.writeArgsLocked()
}

// SetDebug toggles the debug view and resends the current arguments.
func (c *Client) SetDebug(debug bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.args.Debug = debug
	return c.writeArgsLocked()
}

// Ping sends a control ping; the answer arrives on Status.
func (c *Client) Ping() error {
	frame, err := messages.NewPingMessage()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(frame)
}

func (c *Client) writeArgsLocked() error {
	frame, err := messages.NewUpdateMessage(c.args)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	return c.writeLocked(frame)
}

func (c *Client) writeLocked(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write update: %w", err)
	}
	return nil
}

// SendUserInput queues text as if the user said it.
func (c *Client) SendUserInput(text string) error {
	return c.Send(messages.SendUserInput{Message: text})
}

// SendAssistantInput makes the assistant say text.
func (c *Client) SendAssistantInput(text string) error {
	return c.Send(messages.SendAssistantInput{Message: text})
}

// PauseAssistant stops the assistant from responding until resumed.
func (c *Client) PauseAssistant() error {
	return c.Send(messages.PauseAssistant{})
}

// ResumeAssistant undoes PauseAssistant.
func (c *Client) ResumeAssistant() error {
	return c.Send(messages.ResumeAssistant{})
}

// SendToolResponse answers a tool_call.
func (c *Client) SendToolResponse(toolCallID, content string) error {
	raw, err := sonic.Marshal(map[string]string{
		"type":         messages.MessageToolResponse,
		"tool_call_id": toolCallID,
		"content":      content,
	})
	if err != nil {
		return err
	}
	return c.Send(messages.SendToolMessage{Message: raw})
}

// Close ends the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.mu.Unlock()
		c.conn.Close()
	})
	return nil
}

type serverFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.conn.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("❌ Host read error: %v", err)
			}
			return
		}
		var frame serverFrame
		if err := sonic.Unmarshal(data, &frame); err != nil {
			log.Printf("⚠️ Invalid server frame: %v", err)
			continue
		}
		if frame.SessionID != "" {
			c.sessionMu.Lock()
			c.sessionID = frame.SessionID
			c.sessionMu.Unlock()
		}
		if err := c.dispatch(frame); err != nil {
			log.Printf("⚠️ Invalid %s payload: %v", frame.Type, err)
		}
	}
}

func (c *Client) dispatch(frame serverFrame) error {
	switch frame.Type {
	case messages.TypeValue:
		var v messages.ComponentValue
		if err := sonic.Unmarshal(frame.Payload, &v); err != nil {
			return err
		}
		offerLatest(c.values, v)
	case messages.TypeDebug:
		var v messages.DebugPayload
		if err := sonic.Unmarshal(frame.Payload, &v); err != nil {
			return err
		}
		offerLatest(c.debug, v)
	case messages.TypeError:
		var v messages.ErrorPayload
		if err := sonic.Unmarshal(frame.Payload, &v); err != nil {
			return err
		}
		if !offer(c.errs, v) {
			log.Printf("⚠️ Error queue full, dropping %s: %s", v.Code, v.Message)
		}
	case messages.TypeStatus:
		var v messages.StatusPayload
		if err := sonic.Unmarshal(frame.Payload, &v); err != nil {
			return err
		}
		offerLatest(c.status, v)
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
	return nil
}

// offer sends v without blocking and reports whether it was queued.
func offer[T any](ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}

// offerLatest sends v, evicting the oldest buffered item when full.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
