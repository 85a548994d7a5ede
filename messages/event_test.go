package messages

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
)

func TestChatEventListenable(t *testing.T) {
	t.Parallel()

	msg, err := ParseTransportMessage([]byte(`{"type":"assistant_message","message":{"content":"hi"}}`))
	require.NoError(t, err)

	require.Equal(t, "message.assistant_message", NewMessageEvent(msg).Listenable())
	require.Equal(t, "opened", NewOpenedEvent().Listenable())
	require.Equal(t, "closed", NewClosedEvent().Listenable())
	require.Equal(t, "error", NewErrorEvent("E", "x").Listenable())
}

func TestParseTransportMessage(t *testing.T) {
	t.Parallel()

	msg, err := ParseTransportMessage([]byte(`{"type":"user_message","message":{"role":"user","content":"hello"}}`))
	require.NoError(t, err)
	require.Equal(t, MessageUserMessage, msg.Type)
	content, ok := msg.UserContent()
	require.True(t, ok)
	require.Equal(t, "hello", content)

	other, err := ParseTransportMessage([]byte(`{"type":"assistant_message","message":{"content":"hello"}}`))
	require.NoError(t, err)
	_, ok = other.UserContent()
	require.False(t, ok)

	for _, raw := range []string{`{}`, `{"type":3}`, `{"type":"  "}`, `nope`} {
		_, err := ParseTransportMessage([]byte(raw))
		require.Error(t, err, raw)
	}
}

func TestComponentValueWireShape(t *testing.T) {
	t.Parallel()

	msg, err := ParseTransportMessage([]byte(`{"type":"chat_metadata","chat_id":"c1"}`))
	require.NoError(t, err)

	frame := NewValueMessage("s1", ComponentValue{
		Events:      []ChatEvent{NewOpenedEvent(), NewMessageEvent(msg), NewErrorEvent("E", "bad")},
		IsConnected: true,
	})
	raw, err := sonic.Marshal(frame)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type":"value","sessionId":"s1",
		"payload":{
			"events":[
				{"type":"opened"},
				{"type":"message","message":{"type":"chat_metadata","chat_id":"c1"}},
				{"type":"error","error":{"code":"E","message":"bad"}}
			],
			"is_muted":false,"is_connected":true}}`, string(raw))

	var back struct {
		Payload ComponentValue `json:"payload"`
	}
	require.NoError(t, sonic.Unmarshal(raw, &back))
	require.Len(t, back.Payload.Events, 3)
	require.Equal(t, "chat_metadata", back.Payload.Events[1].Message.Type)
}

func TestDefaultComponentValue(t *testing.T) {
	t.Parallel()

	raw, err := sonic.Marshal(NewValueMessage("", ComponentValue{}).Payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"events":[],"is_muted":false,"is_connected":false}`, string(raw))
	require.Equal(t, DefaultComponentValue(), ComponentValue{Events: []ChatEvent{}})
}
