package gemini

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/jerhadf/voice-computer-use/messages"
)

func types(msgs []messages.TransportMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestTranslateSetupComplete(t *testing.T) {
	t.Parallel()

	out := translate(&genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{SessionID: "s-1"}})
	require.Equal(t, []string{messages.MessageChatMetadata}, types(out))
	require.JSONEq(t, `{"type":"chat_metadata","chat_id":"s-1"}`, string(out[0].Raw))
}

func TestTranslateServerContent(t *testing.T) {
	t.Parallel()

	out := translate(&genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		InputTranscription: &genai.Transcription{Text: "book a table", Finished: true},
		ModelTurn: &genai.Content{Parts: []*genai.Part{
			{Text: "sure"},
			{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: []byte{1, 2, 3}}},
		}},
		TurnComplete: true,
	}})

	require.Equal(t, []string{
		messages.MessageUserMessage,
		messages.MessageAssistantMessage,
		messages.MessageAudioOutput,
		messages.MessageAssistantEnd,
	}, types(out))

	content, ok := out[0].UserContent()
	require.True(t, ok)
	require.Equal(t, "book a table", content)
	require.JSONEq(t, `{"type":"audio_output","data":"AQID","mime_type":"audio/pcm;rate=24000"}`, string(out[2].Raw))
}

func TestTranslateInterruptionAndTranscript(t *testing.T) {
	t.Parallel()

	out := translate(&genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
		Interrupted:         true,
		OutputTranscription: &genai.Transcription{Text: "one moment"},
	}})
	require.Equal(t, []string{messages.MessageUserInterruption, messages.MessageAssistantMessage}, types(out))
}

func TestTranslateToolCalls(t *testing.T) {
	t.Parallel()

	out := translate(&genai.LiveServerMessage{
		ToolCall: &genai.LiveServerToolCall{FunctionCalls: []*genai.FunctionCall{
			{ID: "c1", Name: "lookup", Args: map[string]any{"q": "hours"}},
		}},
		ToolCallCancellation: &genai.LiveServerToolCallCancellation{IDs: []string{"c0"}},
	})
	require.Equal(t, []string{messages.MessageToolCall, MessageToolCallCancellation}, types(out))

	var call toolCall
	require.NoError(t, sonic.Unmarshal(out[0].Raw, &call))
	require.Equal(t, "c1", call.ToolCallID)
	require.Equal(t, "lookup", call.Name)
	require.JSONEq(t, `{"q":"hours"}`, call.Parameters)
	require.True(t, call.ResponseRequired)
}

func TestTranslateEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, translate(nil))
	require.Empty(t, translate(&genai.LiveServerMessage{}))
}

func TestFunctionResponse(t *testing.T) {
	t.Parallel()

	names := map[string]string{"c1": "lookup"}

	resp, err := functionResponse([]byte(`{"type":"tool_response","tool_call_id":"c1","content":"9-5"}`), names)
	require.NoError(t, err)
	require.Equal(t, "c1", resp.ID)
	require.Equal(t, "lookup", resp.Name)
	require.Equal(t, map[string]any{"output": "9-5"}, resp.Response)

	resp, err = functionResponse([]byte(`{"type":"tool_error","tool_call_id":"c1","error":"closed"}`), names)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"error": "closed"}, resp.Response)

	_, err = functionResponse([]byte(`{"type":"tool_response"}`), names)
	require.Error(t, err)
	_, err = functionResponse([]byte(`{"type":"user_input","tool_call_id":"c1"}`), names)
	require.Error(t, err)
}

func toolCallMessage(id, name string) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ToolCall: &genai.LiveServerToolCall{
		FunctionCalls: []*genai.FunctionCall{{ID: id, Name: name}},
	}}
}

func cancelMessage(ids ...string) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{ToolCallCancellation: &genai.LiveServerToolCallCancellation{IDs: ids}}
}
