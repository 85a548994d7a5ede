// Package voice defines the live session transport the bridge drives. The
// bridge only depends on this capability set, never on a concrete backend.
package voice

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jerhadf/voice-computer-use/messages"
)

// ErrNotConnected is returned by send operations while the session is not open.
var ErrNotConnected = errors.New("voice session is not connected")

// ReadyState is the connection state of a live session.
type ReadyState int

const (
	ReadyStateIdle ReadyState = iota
	ReadyStateConnecting
	ReadyStateOpen
	ReadyStateClosed
)

func (s ReadyState) String() string {
	switch s {
	case ReadyStateIdle:
		return "idle"
	case ReadyStateConnecting:
		return "connecting"
	case ReadyStateOpen:
		return "open"
	case ReadyStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handlers receive session callbacks. Any field may be nil.
//
// OnStateChange fires whenever IsMuted or ReadyState may have changed outside
// of a Session method call; the receiver is expected to sample both again.
// Implementations never invoke a handler from inside a Session method.
type Handlers struct {
	OnMessage     func(msg messages.TransportMessage)
	OnOpen        func()
	OnClose       func()
	OnError       func(err messages.ErrorPayload)
	OnStateChange func()
}

// Session is a live voice/chat connection.
type Session interface {
	// SetHandlers installs callbacks. It must be called before Connect.
	SetHandlers(h Handlers)

	// Connect starts connecting and returns without waiting for the
	// connection to open. Progress is reported through Handlers.
	Connect(ctx context.Context) error
	Disconnect() error

	Mute()
	Unmute()
	MuteAudio()
	UnmuteAudio()
	PauseAssistant() error
	ResumeAssistant() error

	SendUserInput(text string) error
	SendAssistantInput(text string) error
	SendSessionSettings(settings json.RawMessage) error
	SendToolMessage(msg json.RawMessage) error

	IsMuted() bool
	IsAudioMuted() bool
	ReadyState() ReadyState
}
