package messages

// Error codes
const (
	ErrCodeInvalidMessage    = "INVALID_MESSAGE"
	ErrCodeSessionFailed     = "SESSION_FAILED"
	ErrCodeVoiceError        = "VOICE_ERROR"
	ErrCodeProtocolViolation = "PROTOCOL_VIOLATION"
	ErrCodeConnectionClosed  = "CONNECTION_CLOSED"
)

// Message types
const (
	TypeValue  = "value"
	TypeDebug  = "debug"
	TypeStatus = "status"
	TypeError  = "error"
)

// ServerMessage represents a message sent to the host
type ServerMessage struct {
	Type      string `json:"type"` // "value", "debug", "status", "error"
	SessionID string `json:"sessionId,omitempty"`
	Payload   any    `json:"payload"`
}

// ComponentValue is the snapshot published to the host. It always carries the
// whole event log, so the host simply replaces whatever it saw last.
type ComponentValue struct {
	Events      []ChatEvent `json:"events"`
	IsMuted     bool        `json:"is_muted"`
	IsConnected bool        `json:"is_connected"`
}

// DefaultComponentValue is what a host should assume before the first publish.
func DefaultComponentValue() ComponentValue {
	return ComponentValue{Events: []ChatEvent{}}
}

// IndexedCommand is a command paired with its position in the host list.
type IndexedCommand struct {
	Index   int         `json:"index"`
	Type    CommandType `json:"type"`
	Command Command     `json:"-"`
}

// DebugPayload exposes the bridge internals to a host running with debug on.
type DebugPayload struct {
	CommandCursor int              `json:"command_cursor"`
	Commands      []IndexedCommand `json:"commands"`
	EventCursor   int              `json:"event_cursor"`
	Events        []ChatEvent      `json:"events"`
	Violations    int              `json:"violations"`
	Text          string           `json:"text"`
}

// StatusPayload contains status updates
type StatusPayload struct {
	Status  string `json:"status"` // "connected", "pong", "disconnected"
	Message string `json:"message,omitempty"`
}

// NewValueMessage creates a snapshot message
func NewValueMessage(sessionID string, value ComponentValue) *ServerMessage {
	if value.Events == nil {
		value.Events = []ChatEvent{}
	}
	return &ServerMessage{
		Type:      TypeValue,
		SessionID: sessionID,
		Payload:   value,
	}
}

// NewDebugMessage creates a debug view message
func NewDebugMessage(sessionID string, view DebugPayload) *ServerMessage {
	return &ServerMessage{
		Type:      TypeDebug,
		SessionID: sessionID,
		Payload:   view,
	}
}

// NewStatusMessage creates a status message
func NewStatusMessage(sessionID, status, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeStatus,
		SessionID: sessionID,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
		},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
