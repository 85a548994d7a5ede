package evi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
)

type fakeEVI struct {
	server *httptest.Server
	conns  chan *websocket.Conn
	query  chan url.Values
}

func newFakeEVI(t *testing.T) *fakeEVI {
	t.Helper()
	f := &fakeEVI{
		conns: make(chan *websocket.Conn, 1),
		query: make(chan url.Values, 1),
	}
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.query <- r.URL.Query()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.conns <- conn
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeEVI) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/v0/evi/chat"
}

type recorder struct {
	opened  chan struct{}
	closed  chan struct{}
	msgs    chan messages.TransportMessage
	errs    chan messages.ErrorPayload
	changes chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		opened:  make(chan struct{}, 4),
		closed:  make(chan struct{}, 4),
		msgs:    make(chan messages.TransportMessage, 16),
		errs:    make(chan messages.ErrorPayload, 4),
		changes: make(chan struct{}, 16),
	}
}

func (r *recorder) handlers() voice.Handlers {
	return voice.Handlers{
		OnOpen:        func() { r.opened <- struct{}{} },
		OnClose:       func() { r.closed <- struct{}{} },
		OnMessage:     func(m messages.TransportMessage) { r.msgs <- m },
		OnError:       func(e messages.ErrorPayload) { r.errs <- e },
		OnStateChange: func() { r.changes <- struct{}{} },
	}
}

func wait[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, sonic.Unmarshal(data, &frame))
	return frame
}

func connect(t *testing.T) (*Client, *recorder, *websocket.Conn, url.Values) {
	t.Helper()
	f := newFakeEVI(t)
	rec := newRecorder()
	c := New(Config{URL: f.url(), APIKey: "key-1", ConfigID: "cfg-1"})
	c.SetHandlers(rec.handlers())

	require.NoError(t, c.Connect(context.Background()))
	query := wait(t, f.query)
	conn := wait(t, f.conns)
	t.Cleanup(func() { conn.Close() })
	wait(t, rec.opened)
	require.Equal(t, voice.ReadyStateOpen, c.ReadyState())
	return c, rec, conn, query
}

func TestClientConnectSendsCredentials(t *testing.T) {
	t.Parallel()

	c, _, _, query := connect(t)
	defer c.Disconnect()

	require.Equal(t, "key-1", query.Get("api_key"))
	require.Equal(t, "cfg-1", query.Get("config_id"))
}

func TestClientOutboundFrames(t *testing.T) {
	t.Parallel()

	c, _, conn, _ := connect(t)
	defer c.Disconnect()

	require.NoError(t, c.SendUserInput("hi"))
	require.Equal(t, map[string]any{"type": "user_input", "text": "hi"}, readFrame(t, conn))

	require.NoError(t, c.SendAssistantInput("hello"))
	require.Equal(t, map[string]any{"type": "assistant_input", "text": "hello"}, readFrame(t, conn))

	require.NoError(t, c.PauseAssistant())
	require.Equal(t, map[string]any{"type": "pause_assistant_message"}, readFrame(t, conn))

	require.NoError(t, c.ResumeAssistant())
	require.Equal(t, map[string]any{"type": "resume_assistant_message"}, readFrame(t, conn))

	require.NoError(t, c.SendSessionSettings(json.RawMessage(`{"system_prompt":"be brief"}`)))
	require.Equal(t, map[string]any{"type": "session_settings", "system_prompt": "be brief"}, readFrame(t, conn))

	tool := json.RawMessage(`{"type":"tool_response","tool_call_id":"c1","content":"42"}`)
	require.NoError(t, c.SendToolMessage(tool))
	require.Equal(t, map[string]any{"type": "tool_response", "tool_call_id": "c1", "content": "42"}, readFrame(t, conn))
}

func TestClientRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	c, _, _, _ := connect(t)
	defer c.Disconnect()

	require.Error(t, c.SendToolMessage(json.RawMessage(`{"type":"user_input"}`)))
	require.Error(t, c.SendToolMessage(json.RawMessage(`{"content":"x"}`)))
	require.Error(t, c.SendSessionSettings(json.RawMessage(`"nope"`)))
}

func TestClientInboundMessages(t *testing.T) {
	t.Parallel()

	c, rec, conn, _ := connect(t)
	defer c.Disconnect()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat_metadata","chat_id":"abc"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"user_message","message":{"role":"user","content":"yo"}}`)))

	first := wait(t, rec.msgs)
	require.Equal(t, messages.MessageChatMetadata, first.Type)
	require.JSONEq(t, `{"type":"chat_metadata","chat_id":"abc"}`, string(first.Raw))

	second := wait(t, rec.msgs)
	content, ok := second.UserContent()
	require.True(t, ok)
	require.Equal(t, "yo", content)
}

func TestClientDisconnect(t *testing.T) {
	t.Parallel()

	c, rec, _, _ := connect(t)
	require.NoError(t, c.Disconnect())
	wait(t, rec.closed)

	require.Equal(t, voice.ReadyStateClosed, c.ReadyState())
	require.ErrorIs(t, c.SendUserInput("late"), voice.ErrNotConnected)
	require.Empty(t, rec.errs)
	require.NoError(t, c.Disconnect())
}

func TestClientServerClose(t *testing.T) {
	t.Parallel()

	c, rec, conn, _ := connect(t)
	conn.Close()

	wait(t, rec.closed)
	require.Equal(t, voice.ReadyStateClosed, c.ReadyState())
}

func TestClientMuteFlags(t *testing.T) {
	t.Parallel()

	c := New(Config{})
	c.Mute()
	c.MuteAudio()
	require.True(t, c.IsMuted())
	require.True(t, c.IsAudioMuted())
	c.Unmute()
	c.UnmuteAudio()
	require.False(t, c.IsMuted())
	require.False(t, c.IsAudioMuted())
}

func TestClientSendBeforeConnect(t *testing.T) {
	t.Parallel()

	c := New(Config{})
	require.Equal(t, voice.ReadyStateIdle, c.ReadyState())
	require.ErrorIs(t, c.SendUserInput("hi"), voice.ErrNotConnected)
	require.ErrorIs(t, c.PauseAssistant(), voice.ErrNotConnected)
	require.NoError(t, c.Disconnect())
}

func TestClientConnectFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	rec := newRecorder()
	c := New(Config{URL: target})
	c.SetHandlers(rec.handlers())
	require.NoError(t, c.Connect(context.Background()))

	e := wait(t, rec.errs)
	require.Equal(t, ErrCodeConnectFailed, e.Code)
	wait(t, rec.changes)
	require.Equal(t, voice.ReadyStateClosed, c.ReadyState())
}

func TestClientReconnectIgnoresStaleClose(t *testing.T) {
	t.Parallel()

	f := newFakeEVI(t)
	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	opened := make(chan struct{}, 4)
	closed := make(chan struct{}, 4)
	c := New(Config{URL: f.url(), APIKey: "k"})
	c.SetHandlers(voice.Handlers{
		OnOpen:  func() { opened <- struct{}{} },
		OnClose: func() { closed <- struct{}{} },
		OnMessage: func(messages.TransportMessage) {
			entered <- struct{}{}
			<-gate
		},
	})
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))
	wait(t, f.query)
	first := wait(t, f.conns)
	defer first.Close()
	wait(t, opened)

	// Park the first read loop inside a callback so its close is observed
	// only after the reconnect.
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat_metadata"}`)))
	wait(t, entered)

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Connect(context.Background()))
	wait(t, f.query)
	second := wait(t, f.conns)
	defer second.Close()
	wait(t, opened)

	close(gate)
	require.Never(t, func() bool { return len(closed) > 0 }, 200*time.Millisecond, 10*time.Millisecond)
	require.Equal(t, voice.ReadyStateOpen, c.ReadyState())

	require.NoError(t, c.SendUserInput("again"))
	frame := readFrame(t, second)
	require.Equal(t, TypeUserInput, frame["type"])
	require.Equal(t, "again", frame["text"])
}
