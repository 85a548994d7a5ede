package messages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// CommandType is the wire discriminator of a Command.
type CommandType string

// Command types, spelled the way the host sends them.
const (
	CommandMute                CommandType = "mute"
	CommandUnmute              CommandType = "unmute"
	CommandPauseAssistant      CommandType = "pauseAssistant"
	CommandResumeAssistant     CommandType = "resumeAssistant"
	CommandMuteAudio           CommandType = "muteAudio"
	CommandUnmuteAudio         CommandType = "unmuteAudio"
	CommandConnect             CommandType = "connect"
	CommandDisconnect          CommandType = "disconnect"
	CommandClearAudioQueue     CommandType = "clearAudioQueue"
	CommandSendUserInput       CommandType = "sendUserInput"
	CommandSendAssistantInput  CommandType = "sendAssistantInput"
	CommandSendSessionSettings CommandType = "sendSessionSettings"
	CommandSendToolMessage     CommandType = "sendToolMessage"
)

// Command is one host instruction for the live session.
//
// The set of implementations is closed: only this package can satisfy the
// interface, so a type switch over the variants below is exhaustive.
type Command interface {
	Type() CommandType
	isCommand()
}

type (
	Mute            struct{}
	Unmute          struct{}
	PauseAssistant  struct{}
	ResumeAssistant struct{}
	MuteAudio       struct{}
	UnmuteAudio     struct{}
	Connect         struct{}
	Disconnect      struct{}
	ClearAudioQueue struct{}
)

// SendUserInput sends text as if the user had said it.
type SendUserInput struct {
	Message string
}

// SendAssistantInput makes the assistant speak the given text.
type SendAssistantInput struct {
	Message string
}

// SendSessionSettings carries a session_settings object, passed through untouched.
type SendSessionSettings struct {
	Message json.RawMessage
}

// SendToolMessage carries a tool_response or tool_error object, passed through untouched.
type SendToolMessage struct {
	Message json.RawMessage
}

func (Mute) Type() CommandType                { return CommandMute }
func (Unmute) Type() CommandType              { return CommandUnmute }
func (PauseAssistant) Type() CommandType      { return CommandPauseAssistant }
func (ResumeAssistant) Type() CommandType     { return CommandResumeAssistant }
func (MuteAudio) Type() CommandType           { return CommandMuteAudio }
func (UnmuteAudio) Type() CommandType         { return CommandUnmuteAudio }
func (Connect) Type() CommandType             { return CommandConnect }
func (Disconnect) Type() CommandType          { return CommandDisconnect }
func (ClearAudioQueue) Type() CommandType     { return CommandClearAudioQueue }
func (SendUserInput) Type() CommandType       { return CommandSendUserInput }
func (SendAssistantInput) Type() CommandType  { return CommandSendAssistantInput }
func (SendSessionSettings) Type() CommandType { return CommandSendSessionSettings }
func (SendToolMessage) Type() CommandType     { return CommandSendToolMessage }

func (Mute) isCommand()                {}
func (Unmute) isCommand()              {}
func (PauseAssistant) isCommand()      {}
func (ResumeAssistant) isCommand()     {}
func (MuteAudio) isCommand()           {}
func (UnmuteAudio) isCommand()         {}
func (Connect) isCommand()             {}
func (Disconnect) isCommand()          {}
func (ClearAudioQueue) isCommand()     {}
func (SendUserInput) isCommand()       {}
func (SendAssistantInput) isCommand()  {}
func (SendSessionSettings) isCommand() {}
func (SendToolMessage) isCommand()     {}

// commandFrame is the JSON shape of every command.
type commandFrame struct {
	Type    CommandType     `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
}

// EncodeCommand renders a command in its wire form.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("nil command")
	}
	frame := commandFrame{Type: cmd.Type()}
	switch c := cmd.(type) {
	case SendUserInput:
		raw, err := sonic.Marshal(c.Message)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", c.Type(), err)
		}
		frame.Message = raw
	case SendAssistantInput:
		raw, err := sonic.Marshal(c.Message)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", c.Type(), err)
		}
		frame.Message = raw
	case SendSessionSettings:
		frame.Message = c.Message
	case SendToolMessage:
		frame.Message = c.Message
	}
	return sonic.Marshal(frame)
}

// DecodeCommand parses one wire command. Unknown types are rejected here so
// that nothing past the decoder ever sees a command it cannot apply.
func DecodeCommand(data []byte) (Command, error) {
	var frame commandFrame
	if err := sonic.Unmarshal(data, &frame); err != nil {
		return nil, badRequest("invalid command", "")
	}
	typ := CommandType(strings.TrimSpace(string(frame.Type)))
	if typ == "" {
		return nil, badRequest("missing command type", "type")
	}

	switch typ {
	case CommandMute:
		return Mute{}, nil
	case CommandUnmute:
		return Unmute{}, nil
	case CommandPauseAssistant:
		return PauseAssistant{}, nil
	case CommandResumeAssistant:
		return ResumeAssistant{}, nil
	case CommandMuteAudio:
		return MuteAudio{}, nil
	case CommandUnmuteAudio:
		return UnmuteAudio{}, nil
	case CommandConnect:
		return Connect{}, nil
	case CommandDisconnect:
		return Disconnect{}, nil
	case CommandClearAudioQueue:
		return ClearAudioQueue{}, nil
	case CommandSendUserInput:
		text, err := decodeText(frame.Message, typ)
		if err != nil {
			return nil, err
		}
		return SendUserInput{Message: text}, nil
	case CommandSendAssistantInput:
		text, err := decodeText(frame.Message, typ)
		if err != nil {
			return nil, err
		}
		return SendAssistantInput{Message: text}, nil
	case CommandSendSessionSettings:
		if !isObject(frame.Message) {
			return nil, badRequest(string(typ)+".message must be an object", "message")
		}
		return SendSessionSettings{Message: frame.Message}, nil
	case CommandSendToolMessage:
		if !isObject(frame.Message) {
			return nil, badRequest(string(typ)+".message must be an object", "message")
		}
		return SendToolMessage{Message: frame.Message}, nil
	default:
		return nil, unsupported("unsupported command type "+string(typ), "type")
	}
}

func decodeText(raw json.RawMessage, typ CommandType) (string, error) {
	if len(raw) == 0 {
		return "", badRequest(string(typ)+".message is required", "message")
	}
	var text string
	if err := sonic.Unmarshal(raw, &text); err != nil {
		return "", badRequest(string(typ)+".message must be a string", "message")
	}
	return text, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}

// CommandList is the host-owned, grow-only list of commands.
type CommandList []Command

// MarshalJSON implements json.Marshaler.
func (l CommandList) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(l))
	for i, cmd := range l {
		raw, err := EncodeCommand(cmd)
		if err != nil {
			return nil, fmt.Errorf("commands[%d]: %w", i, err)
		}
		raws = append(raws, raw)
	}
	return sonic.Marshal(raws)
}

// UnmarshalJSON implements json.Unmarshaler. A single bad element rejects the
// whole list.
func (l *CommandList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := sonic.Unmarshal(data, &raws); err != nil {
		return badRequest("commands must be an array", "commands")
	}
	out := make(CommandList, 0, len(raws))
	for i, raw := range raws {
		cmd, err := DecodeCommand(raw)
		if err != nil {
			if decErr, ok := err.(*DecodeError); ok {
				return decErr.within(fmt.Sprintf("commands[%d]", i))
			}
			return err
		}
		out = append(out, cmd)
	}
	*l = out
	return nil
}
