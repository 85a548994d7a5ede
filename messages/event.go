package messages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// EventType is the discriminator of a ChatEvent.
type EventType string

const (
	EventMessage EventType = "message"
	EventOpened  EventType = "opened"
	EventClosed  EventType = "closed"
	EventError   EventType = "error"
)

// Transport message subtypes the bridge and its hosts care about by name.
const (
	MessageUserMessage      = "user_message"
	MessageAssistantMessage = "assistant_message"
	MessageChatMetadata     = "chat_metadata"
	MessageAudioOutput      = "audio_output"
	MessageAssistantEnd     = "assistant_end"
	MessageUserInterruption = "user_interruption"
	MessageToolCall         = "tool_call"
	MessageToolResponse     = "tool_response"
	MessageToolError        = "tool_error"
	MessageError            = "error"
)

// ChatEvent is one entry of the bridge's event log.
type ChatEvent struct {
	Type    EventType         `json:"type"`
	Message *TransportMessage `json:"message,omitempty"`
	Error   *ErrorPayload     `json:"error,omitempty"`
}

// NewMessageEvent wraps a transport message.
func NewMessageEvent(msg TransportMessage) ChatEvent {
	return ChatEvent{Type: EventMessage, Message: &msg}
}

// NewOpenedEvent reports that the live session opened.
func NewOpenedEvent() ChatEvent { return ChatEvent{Type: EventOpened} }

// NewClosedEvent reports that the live session closed.
func NewClosedEvent() ChatEvent { return ChatEvent{Type: EventClosed} }

// NewErrorEvent carries a session error as data.
func NewErrorEvent(code, message string) ChatEvent {
	return ChatEvent{Type: EventError, Error: &ErrorPayload{Code: code, Message: message}}
}

// Listenable returns the filter token this event is matched against:
// "message.<subtype>" for transport messages, the bare type otherwise.
func (e ChatEvent) Listenable() string {
	if e.Type == EventMessage {
		subtype := ""
		if e.Message != nil {
			subtype = e.Message.Type
		}
		return string(EventMessage) + "." + subtype
	}
	return string(e.Type)
}

// TransportMessage is a message received from the voice transport, kept as
// the raw JSON object the transport produced plus its "type" field.
type TransportMessage struct {
	Type string
	Raw  json.RawMessage
}

// ParseTransportMessage reads the subtype of a raw transport frame.
func ParseTransportMessage(data []byte) (TransportMessage, error) {
	node, err := sonic.Get(data, "type")
	if err != nil {
		return TransportMessage{}, fmt.Errorf("transport message without type: %w", err)
	}
	typ, err := node.StrictString()
	if err != nil {
		return TransportMessage{}, fmt.Errorf("transport message type is not a string: %w", err)
	}
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return TransportMessage{}, fmt.Errorf("transport message type is empty")
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return TransportMessage{Type: typ, Raw: raw}, nil
}

// NewTransportMessage encodes v as a transport message of the given subtype.
// v should marshal to an object carrying the same "type" field.
func NewTransportMessage(typ string, v any) (TransportMessage, error) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return TransportMessage{}, fmt.Errorf("encode %s: %w", typ, err)
	}
	return TransportMessage{Type: typ, Raw: raw}, nil
}

// MarshalJSON implements json.Marshaler.
func (m TransportMessage) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		return m.Raw, nil
	}
	return sonic.Marshal(map[string]string{"type": m.Type})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *TransportMessage) UnmarshalJSON(data []byte) error {
	parsed, err := ParseTransportMessage(data)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// UserContent returns message.content of a user_message.
func (m TransportMessage) UserContent() (string, bool) {
	if m.Type != MessageUserMessage || len(m.Raw) == 0 {
		return "", false
	}
	node, err := sonic.Get(m.Raw, "message", "content")
	if err != nil {
		return "", false
	}
	content, err := node.StrictString()
	if err != nil {
		return "", false
	}
	return content, true
}

// ErrorPayload describes a session error.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
