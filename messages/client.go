package messages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Host frame types.
const (
	TypeUpdate  = "update"
	TypeControl = "control"
)

// HostMessage represents a frame sent by the host.
type HostMessage struct {
	Type    string          `json:"type"` // "update", "control"
	Payload json.RawMessage `json:"payload"`
}

// Args is the full argument snapshot the host sends on every update.
// ListenTo is nil when the host did not send one, which selects the default
// filter; an explicit empty list listens to nothing.
type Args struct {
	Commands   CommandList `json:"commands"`
	ListenTo   []string    `json:"listen_to"`
	HumeAPIKey string      `json:"hume_api_key,omitempty"`
	ConfigID   string      `json:"config_id,omitempty"`
	Debug      bool        `json:"debug,omitempty"`
}

// ControlPayload contains control actions
type ControlPayload struct {
	Action string `json:"action"` // "ping"
}

// DecodeHostMessage reads a host frame and returns *Args for updates or
// ControlPayload for control frames.
func DecodeHostMessage(data []byte) (any, error) {
	var msg HostMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	switch strings.TrimSpace(msg.Type) {
	case TypeUpdate:
		return DecodeArgs(msg.Payload)
	case TypeControl:
		var payload ControlPayload
		if err := sonic.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, badRequest("invalid control payload", "payload")
		}
		switch payload.Action {
		case "ping":
			return payload, nil
		default:
			return nil, unsupported("unsupported control action", "payload.action")
		}
	case "":
		return nil, badRequest("missing type", "type")
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// DecodeArgs decodes an update payload. Commands are decoded one by one so a
// bad element is reported with its index.
func DecodeArgs(data []byte) (*Args, error) {
	var raw struct {
		Commands   []json.RawMessage `json:"commands"`
		ListenTo   []string          `json:"listen_to"`
		HumeAPIKey string            `json:"hume_api_key"`
		ConfigID   string            `json:"config_id"`
		Debug      bool              `json:"debug"`
	}
	if len(data) == 0 {
		return nil, badRequest("update payload is required", "payload")
	}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, badRequest("invalid update payload", "payload")
	}

	args := &Args{
		Commands:   make(CommandList, 0, len(raw.Commands)),
		ListenTo:   raw.ListenTo,
		HumeAPIKey: raw.HumeAPIKey,
		ConfigID:   raw.ConfigID,
		Debug:      raw.Debug,
	}
	for i, item := range raw.Commands {
		cmd, err := DecodeCommand(item)
		if err != nil {
			if decErr, ok := err.(*DecodeError); ok {
				return nil, decErr.within(fmt.Sprintf("commands[%d]", i))
			}
			return nil, err
		}
		args.Commands = append(args.Commands, cmd)
	}
	return args, nil
}

// NewUpdateMessage wraps args in an update frame.
func NewUpdateMessage(args Args) ([]byte, error) {
	payload, err := sonic.Marshal(args)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(HostMessage{Type: TypeUpdate, Payload: payload})
}

// NewPingMessage builds a control ping frame.
func NewPingMessage() ([]byte, error) {
	payload, err := sonic.Marshal(ControlPayload{Action: "ping"})
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(HostMessage{Type: TypeControl, Payload: payload})
}
