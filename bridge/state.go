package bridge

import (
	"fmt"

	"github.com/jerhadf/voice-computer-use/actor"
	"github.com/jerhadf/voice-computer-use/messages"
)

// DefaultEchoToken is the content the voice transport echoes back for the
// empty user input sent by clearAudioQueue.
const DefaultEchoToken = "."

// SessionState is sampled from the live session; it is never stored as the
// source of truth.
type SessionState struct {
	IsMuted     bool
	IsConnected bool
}

// State is everything the bridge owns. Only the actor goroutine mutates it.
type State struct {
	// Commands is the last list accepted from the host.
	Commands      messages.CommandList
	CommandCursor int

	Events      []messages.ChatEvent
	EventCursor int

	Filter ListenFilter
	Debug  bool

	// Session is the last published session state. It starts equal to the
	// default component value the host assumes before any publish.
	Session SessionState

	// PendingClears counts clearAudioQueue echoes not yet swallowed. Only
	// clears whose empty input was sent are counted.
	PendingClears int
	EchoToken     string

	Violations int
}

// NewState returns the state of a fresh bridge.
func NewState(echoToken string) State {
	return State{
		Filter:    NewListenFilter(nil),
		EchoToken: echoToken,
	}
}

// Value builds the snapshot published to the host.
func (s State) Value() messages.ComponentValue {
	return messages.ComponentValue{
		Events:      s.snapshot(),
		IsMuted:     s.Session.IsMuted,
		IsConnected: s.Session.IsConnected,
	}
}

// snapshot caps the slice so a later append can never be observed through it.
func (s State) snapshot() []messages.ChatEvent {
	n := len(s.Events)
	if n == 0 {
		return []messages.ChatEvent{}
	}
	return s.Events[:n:n]
}

// ProtocolViolation is reported when the host sends a command list shorter
// than what was already applied.
type ProtocolViolation struct {
	Cursor int
	Length int
}

func (v ProtocolViolation) Error() string {
	return fmt.Sprintf("command list shrank: cursor %d, length %d", v.Cursor, v.Length)
}

// Inputs.

type hostUpdate struct {
	actor.InputBase
	Args messages.Args
}

type sessionEvent struct {
	actor.InputBase
	Event   messages.ChatEvent
	Session SessionState
}

type stateSampled struct {
	actor.InputBase
	Session SessionState
}

// clearSent arms echo suppression once the empty input of a clearAudioQueue
// actually went out.
type clearSent struct {
	actor.InputBase
}

// Effects.

type applyCommands struct {
	actor.EffectBase
	Start    int
	Commands []messages.Command
}

type publish struct {
	actor.EffectBase
	Value messages.ComponentValue
}

type renderDebug struct {
	actor.EffectBase
	View messages.DebugPayload
}

type reportViolation struct {
	actor.EffectBase
	Violation ProtocolViolation
}
