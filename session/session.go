package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jerhadf/voice-computer-use/bridge"
	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	maxMessageSize  = 512 * 1024
)

// VoiceFactory builds the live session for a host from its first update.
type VoiceFactory func(ctx context.Context, args *messages.Args) (voice.Session, error)

// Snapshot is what the manager records about a session after each publish.
type Snapshot struct {
	CommandCursor int
	EventCursor   int
	Events        int
	IsMuted       bool
	IsConnected   bool
}

// HostSession is the server side of one host connection. It owns the bridge
// and with it the live voice session.
type HostSession struct {
	ID           string
	ClientConn   *websocket.Conn
	CreatedAt    time.Time
	LastActivity time.Time

	newVoice   VoiceFactory
	bridgeOpts []bridge.Option
	keepAlive  time.Duration
	onSnapshot func(id string, snap Snapshot)
	bridge     *bridge.Bridge

	// Use channels for non-blocking writes
	writeChan chan any

	mu        sync.RWMutex
	closed    bool
	CloseChan chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// Options configure a HostSession.
type Options struct {
	NewVoice   VoiceFactory
	Bridge     []bridge.Option
	KeepAlive  time.Duration
	OnSnapshot func(id string, snap Snapshot)
}

// NewHostSession wraps an upgraded connection. Nothing runs until Start.
func NewHostSession(id string, clientConn *websocket.Conn, opts Options) *HostSession {
	ctx, cancel := context.WithCancel(context.Background())

	clientConn.SetReadLimit(maxMessageSize)

	return &HostSession{
		ID:           id,
		ClientConn:   clientConn,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
		newVoice:     opts.NewVoice,
		bridgeOpts:   append([]bridge.Option{bridge.WithID(shortID(id))}, opts.Bridge...),
		keepAlive:    opts.KeepAlive,
		onSnapshot:   opts.OnSnapshot,
		writeChan:    make(chan any, writeBufferSize),
		CloseChan:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Start begins the bidirectional message handling
func (cs *HostSession) Start() {
	go cs.writePump()
	cs.queueMessage(messages.NewStatusMessage(cs.ID, "connected", "Session established"))
	go cs.handleHostMessages()
}

// Bridge returns the bridge once the first update created it.
func (cs *HostSession) Bridge() *bridge.Bridge {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.bridge
}

// SetValue implements bridge.Host.
func (cs *HostSession) SetValue(value messages.ComponentValue) {
	cs.queueMessage(messages.NewValueMessage(cs.ID, value))
	if cs.onSnapshot == nil {
		return
	}
	snap := Snapshot{
		Events:      len(value.Events),
		IsMuted:     value.IsMuted,
		IsConnected: value.IsConnected,
	}
	if b := cs.Bridge(); b != nil {
		st := b.State()
		snap.CommandCursor = st.CommandCursor
		snap.EventCursor = st.EventCursor
	}
	cs.onSnapshot(cs.ID, snap)
}

// RenderDebug implements bridge.Host.
func (cs *HostSession) RenderDebug(view messages.DebugPayload) {
	cs.queueMessage(messages.NewDebugMessage(cs.ID, view))
}

// ReportViolation implements bridge.Host.
func (cs *HostSession) ReportViolation(v bridge.ProtocolViolation) {
	cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeProtocolViolation, v.Error()))
}

// writePump handles all outgoing messages in a single goroutine
func (cs *HostSession) writePump() {
	var ping <-chan time.Time
	if cs.keepAlive > 0 {
		ticker := time.NewTicker(cs.keepAlive)
		defer ticker.Stop()
		ping = ticker.C
	}

	defer func() {
		// Send close message before exiting
		cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
		cs.ClientConn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		cs.ClientConn.Close()
	}()

	for {
		select {
		case <-cs.CloseChan:
			return
		case <-ping:
			if err := cs.ClientConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case msg := <-cs.writeChan:
			cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cs.ClientConn.WriteJSON(msg); err != nil {
				return
			}

			n := len(cs.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg := <-cs.writeChan:
					if err := cs.ClientConn.WriteJSON(msg); err != nil {
						return
					}
				default:
					// No more messages, continue outer loop
				}
			}
		}
	}
}

// queueMessage adds a message to the write queue (non-blocking)
func (cs *HostSession) queueMessage(msg any) {
	cs.mu.RLock()
	closed := cs.closed
	cs.mu.RUnlock()
	if closed {
		return
	}
	select {
	case cs.writeChan <- msg:
		cs.mu.Lock()
		cs.LastActivity = time.Now()
		cs.mu.Unlock()
	default:
		log.Printf("⚠️ [%s] Write queue full, dropping frame", shortID(cs.ID))
	}
}

// IsClosed reports whether Close ran.
func (cs *HostSession) IsClosed() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.closed
}

// Close tears the session down. The bridge disconnects the voice session
// before anything else is released.
func (cs *HostSession) Close() error {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return nil
	}
	cs.closed = true
	b := cs.bridge
	cs.mu.Unlock()

	if b != nil {
		_ = b.Close()
	}

	cs.cancel()

	// writePump sends the close frame and closes the connection
	close(cs.CloseChan)
	return nil
}

func (cs *HostSession) handleHostMessages() {
	defer cs.Close()

	for {
		messageType, data, err := cs.ClientConn.ReadMessage()
		if err != nil {
			if !cs.IsClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("❌ [%s] Host read error: %v", shortID(cs.ID), err)
			}
			return
		}

		cs.mu.Lock()
		cs.LastActivity = time.Now()
		cs.mu.Unlock()

		if messageType != websocket.TextMessage {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Binary frames are not supported"))
			continue
		}

		decoded, err := messages.DecodeHostMessage(data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, err.Error()))
			continue
		}

		switch msg := decoded.(type) {
		case *messages.Args:
			cs.handleUpdate(msg)
		case messages.ControlPayload:
			cs.queueMessage(messages.NewStatusMessage(cs.ID, "pong", ""))
		}
	}
}

// handleUpdate creates the bridge on the first update and forwards every
// update to it.
func (cs *HostSession) handleUpdate(args *messages.Args) {
	b, err := cs.ensureBridge(args)
	if err != nil {
		log.Printf("❌ [%s] Failed to start voice session: %v", shortID(cs.ID), err)
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionFailed, err.Error()))
		return
	}
	log.Printf("📥 [%s] Update with %d command(s)", shortID(cs.ID), len(args.Commands))
	if err := b.Update(cs.ctx, args); err != nil {
		log.Printf("⚠️ [%s] Update not delivered: %v", shortID(cs.ID), err)
	}
}

func (cs *HostSession) ensureBridge(args *messages.Args) (*bridge.Bridge, error) {
	if b := cs.Bridge(); b != nil {
		return b, nil
	}

	sess, err := cs.newVoice(cs.ctx, args)
	if err != nil {
		return nil, err
	}
	b := bridge.New(sess, cs, cs.bridgeOpts...)

	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		_ = b.Close()
		return nil, context.Canceled
	}
	cs.bridge = b
	cs.mu.Unlock()

	b.Start()
	go func() {
		select {
		case <-b.Done():
			cs.Close()
		case <-cs.CloseChan:
		}
	}()
	log.Printf("🎙️ [%s] Voice session ready", shortID(cs.ID))
	return b, nil
}
