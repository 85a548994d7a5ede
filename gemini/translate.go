package gemini

import (
	"encoding/base64"
	"fmt"
	"log"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"

	"github.com/jerhadf/voice-computer-use/messages"
)

// Subtype Gemini produces that EVI has no name for.
const MessageToolCallCancellation = "tool_call_cancellation"

type chatMetadata struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type conversationMessage struct {
	Type    string      `json:"type"`
	Message chatMessage `json:"message"`
	Final   bool        `json:"final,omitempty"`
}

type audioOutput struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MIMEType string `json:"mime_type,omitempty"`
}

type bareMessage struct {
	Type string `json:"type"`
}

type toolCall struct {
	Type             string `json:"type"`
	ToolCallID       string `json:"tool_call_id"`
	Name             string `json:"name"`
	Parameters       string `json:"parameters"`
	ResponseRequired bool   `json:"response_required"`
}

type toolCallCancellation struct {
	Type        string   `json:"type"`
	ToolCallIDs []string `json:"tool_call_ids"`
}

// translate maps one Live server message onto EVI-style transport messages,
// in the order a listener would expect them.
func translate(resp *genai.LiveServerMessage) []messages.TransportMessage {
	if resp == nil {
		return nil
	}
	var out []messages.TransportMessage
	add := func(typ string, v any) {
		msg, err := messages.NewTransportMessage(typ, v)
		if err != nil {
			log.Printf("⚠️ Dropping Gemini %s: %v", typ, err)
			return
		}
		out = append(out, msg)
	}

	if resp.SetupComplete != nil {
		add(messages.MessageChatMetadata, chatMetadata{
			Type:   messages.MessageChatMetadata,
			ChatID: resp.SetupComplete.SessionID,
		})
	}

	if sc := resp.ServerContent; sc != nil {
		if sc.Interrupted {
			add(messages.MessageUserInterruption, bareMessage{Type: messages.MessageUserInterruption})
		}
		if t := sc.InputTranscription; t != nil && t.Text != "" {
			add(messages.MessageUserMessage, conversationMessage{
				Type:    messages.MessageUserMessage,
				Message: chatMessage{Role: "user", Content: t.Text},
				Final:   t.Finished,
			})
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					add(messages.MessageAssistantMessage, conversationMessage{
						Type:    messages.MessageAssistantMessage,
						Message: chatMessage{Role: "assistant", Content: part.Text},
					})
				}
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					add(messages.MessageAudioOutput, audioOutput{
						Type:     messages.MessageAudioOutput,
						Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
						MIMEType: part.InlineData.MIMEType,
					})
				}
			}
		}
		if t := sc.OutputTranscription; t != nil && t.Text != "" {
			add(messages.MessageAssistantMessage, conversationMessage{
				Type:    messages.MessageAssistantMessage,
				Message: chatMessage{Role: "assistant", Content: t.Text},
				Final:   t.Finished,
			})
		}
		if sc.TurnComplete {
			add(messages.MessageAssistantEnd, bareMessage{Type: messages.MessageAssistantEnd})
		}
	}

	if resp.ToolCall != nil {
		for _, call := range resp.ToolCall.FunctionCalls {
			if call == nil {
				continue
			}
			params, err := sonic.MarshalString(call.Args)
			if err != nil {
				log.Printf("⚠️ Dropping Gemini tool call %s: %v", call.Name, err)
				continue
			}
			add(messages.MessageToolCall, toolCall{
				Type:             messages.MessageToolCall,
				ToolCallID:       call.ID,
				Name:             call.Name,
				Parameters:       params,
				ResponseRequired: true,
			})
		}
	}

	if resp.ToolCallCancellation != nil && len(resp.ToolCallCancellation.IDs) > 0 {
		add(MessageToolCallCancellation, toolCallCancellation{
			Type:        MessageToolCallCancellation,
			ToolCallIDs: resp.ToolCallCancellation.IDs,
		})
	}
	return out
}

// toolMessage is the EVI shape of tool_response and tool_error.
type toolMessage struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	Error      string `json:"error"`
}

// functionResponse turns an EVI tool message into a Gemini function response.
func functionResponse(raw []byte, names map[string]string) (*genai.FunctionResponse, error) {
	var msg toolMessage
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid tool message: %w", err)
	}
	if msg.ToolCallID == "" {
		return nil, fmt.Errorf("tool message without tool_call_id")
	}

	resp := &genai.FunctionResponse{
		ID:   msg.ToolCallID,
		Name: names[msg.ToolCallID],
	}
	switch msg.Type {
	case messages.MessageToolResponse:
		resp.Response = map[string]any{"output": msg.Content}
	case messages.MessageToolError:
		errText := msg.Error
		if errText == "" {
			errText = msg.Content
		}
		resp.Response = map[string]any{"error": errText}
	default:
		return nil, fmt.Errorf("unsupported tool message type %q", msg.Type)
	}
	return resp, nil
}
