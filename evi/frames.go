package evi

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/jerhadf/voice-computer-use/messages"
)

// Outbound frame types understood by EVI.
const (
	TypeUserInput       = "user_input"
	TypeAssistantInput  = "assistant_input"
	TypeSessionSettings = "session_settings"
	TypePauseAssistant  = "pause_assistant_message"
	TypeResumeAssistant = "resume_assistant_message"
)

type textFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type controlFrame struct {
	Type string `json:"type"`
}

// sessionSettingsFrame stamps the session_settings type onto a settings
// object and leaves every other field alone.
func sessionSettingsFrame(settings json.RawMessage) ([]byte, error) {
	var fields map[string]any
	if err := sonic.Unmarshal(settings, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("session settings must be a json object")
	}
	fields["type"] = TypeSessionSettings
	data, err := sonic.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode session settings: %w", err)
	}
	return data, nil
}

// checkToolMessage accepts only tool_response and tool_error objects.
func checkToolMessage(msg json.RawMessage) error {
	node, err := sonic.Get(msg, "type")
	if err != nil {
		return fmt.Errorf("tool message without type: %w", err)
	}
	typ, err := node.StrictString()
	if err != nil {
		return fmt.Errorf("tool message type is not a string: %w", err)
	}
	switch typ {
	case messages.MessageToolResponse, messages.MessageToolError:
		return nil
	default:
		return fmt.Errorf("unsupported tool message type %q", typ)
	}
}
