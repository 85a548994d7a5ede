// Package voicetest provides a recording voice.Session for tests.
package voicetest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
)

// Call is one recorded session operation.
type Call struct {
	Op      string
	Payload string
}

// FakeSession records every operation and lets tests fire callbacks by hand.
// Operations never invoke handlers; use Open, Close, Receive and Fail for that.
type FakeSession struct {
	mu         sync.Mutex
	handlers   voice.Handlers
	calls      []Call
	state      voice.ReadyState
	muted      bool
	audioMuted bool

	// Errors makes the named operation return the given error.
	Errors map[string]error
}

var _ voice.Session = (*FakeSession)(nil)

// NewFakeSession returns an idle fake.
func NewFakeSession() *FakeSession {
	return &FakeSession{Errors: map[string]error{}}
}

func (f *FakeSession) record(op, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Payload: payload})
	return f.Errors[op]
}

// Calls returns a snapshot of recorded operations.
func (f *FakeSession) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many times op was called.
func (f *FakeSession) Count(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *FakeSession) SetHandlers(h voice.Handlers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = h
}

func (f *FakeSession) Connect(ctx context.Context) error {
	if err := f.record("connect", ""); err != nil {
		return err
	}
	f.mu.Lock()
	f.state = voice.ReadyStateConnecting
	f.mu.Unlock()
	return nil
}

func (f *FakeSession) Disconnect() error {
	if err := f.record("disconnect", ""); err != nil {
		return err
	}
	f.mu.Lock()
	f.state = voice.ReadyStateClosed
	f.mu.Unlock()
	return nil
}

func (f *FakeSession) Mute() {
	_ = f.record("mute", "")
	f.mu.Lock()
	f.muted = true
	f.mu.Unlock()
}

func (f *FakeSession) Unmute() {
	_ = f.record("unmute", "")
	f.mu.Lock()
	f.muted = false
	f.mu.Unlock()
}

func (f *FakeSession) MuteAudio() {
	_ = f.record("muteAudio", "")
	f.mu.Lock()
	f.audioMuted = true
	f.mu.Unlock()
}

func (f *FakeSession) UnmuteAudio() {
	_ = f.record("unmuteAudio", "")
	f.mu.Lock()
	f.audioMuted = false
	f.mu.Unlock()
}

func (f *FakeSession) PauseAssistant() error  { return f.record("pauseAssistant", "") }
func (f *FakeSession) ResumeAssistant() error { return f.record("resumeAssistant", "") }

func (f *FakeSession) SendUserInput(text string) error {
	return f.record("sendUserInput", text)
}

func (f *FakeSession) SendAssistantInput(text string) error {
	return f.record("sendAssistantInput", text)
}

func (f *FakeSession) SendSessionSettings(settings json.RawMessage) error {
	return f.record("sendSessionSettings", string(settings))
}

func (f *FakeSession) SendToolMessage(msg json.RawMessage) error {
	return f.record("sendToolMessage", string(msg))
}

func (f *FakeSession) IsMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *FakeSession) IsAudioMuted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioMuted
}

func (f *FakeSession) ReadyState() voice.ReadyState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FakeSession) currentHandlers() voice.Handlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers
}

// Open moves the fake to open and fires OnOpen then OnStateChange.
func (f *FakeSession) Open() {
	f.mu.Lock()
	f.state = voice.ReadyStateOpen
	f.mu.Unlock()
	h := f.currentHandlers()
	if h.OnOpen != nil {
		h.OnOpen()
	}
	if h.OnStateChange != nil {
		h.OnStateChange()
	}
}

// Close moves the fake to closed and fires OnClose then OnStateChange.
func (f *FakeSession) Close() {
	f.mu.Lock()
	f.state = voice.ReadyStateClosed
	f.mu.Unlock()
	h := f.currentHandlers()
	if h.OnClose != nil {
		h.OnClose()
	}
	if h.OnStateChange != nil {
		h.OnStateChange()
	}
}

// Receive fires OnMessage.
func (f *FakeSession) Receive(msg messages.TransportMessage) {
	if h := f.currentHandlers(); h.OnMessage != nil {
		h.OnMessage(msg)
	}
}

// Fail fires OnError.
func (f *FakeSession) Fail(code, message string) {
	if h := f.currentHandlers(); h.OnError != nil {
		h.OnError(messages.ErrorPayload{Code: code, Message: message})
	}
}

// SetMuted flips the mute flag from outside and fires OnStateChange, the way
// a microphone toggle outside the command list would.
func (f *FakeSession) SetMuted(muted bool) {
	f.mu.Lock()
	f.muted = muted
	f.mu.Unlock()
	if h := f.currentHandlers(); h.OnStateChange != nil {
		h.OnStateChange()
	}
}

// UserMessage builds a user_message transport frame with the given content.
func UserMessage(content string) messages.TransportMessage {
	msg, _ := messages.NewTransportMessage(messages.MessageUserMessage, map[string]any{
		"type":    messages.MessageUserMessage,
		"message": map[string]any{"role": "user", "content": content},
	})
	return msg
}

// Message builds a transport frame of the given subtype with no other fields.
func Message(typ string) messages.TransportMessage {
	msg, _ := messages.NewTransportMessage(typ, map[string]any{"type": typ})
	return msg
}
