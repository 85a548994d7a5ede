package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jerhadf/voice-computer-use/actor"
	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
	"github.com/jerhadf/voice-computer-use/voice/voicetest"
)

type nopHost struct{}

func (nopHost) SetValue(messages.ComponentValue)  {}
func (nopHost) RenderDebug(messages.DebugPayload) {}
func (nopHost) ReportViolation(ProtocolViolation) {}

// rogue satisfies messages.Command through embedding but is not one of its
// variants.
type rogue struct{ messages.Command }

func TestRuntimeMapsEveryCommand(t *testing.T) {
	t.Parallel()

	sess := voicetest.NewFakeSession()
	rt := NewRuntime("test", sess, nopHost{})
	settings := json.RawMessage(`{"type":"session_settings","system_prompt":"x"}`)
	tool := json.RawMessage(`{"type":"tool_response","tool_call_id":"1","content":"ok"}`)

	cmds := []messages.Command{
		messages.Connect{},
		messages.Mute{},
		messages.Unmute{},
		messages.MuteAudio{},
		messages.UnmuteAudio{},
		messages.PauseAssistant{},
		messages.ResumeAssistant{},
		messages.ClearAudioQueue{},
		messages.SendUserInput{Message: "u"},
		messages.SendAssistantInput{Message: "a"},
		messages.SendSessionSettings{Message: settings},
		messages.SendToolMessage{Message: tool},
		messages.Disconnect{},
	}

	var emitted []actor.Input
	rt.HandleEffects(context.Background(), []actor.Effect{applyCommands{Commands: cmds}}, func(in actor.Input) {
		emitted = append(emitted, in)
	})

	require.Equal(t, []voicetest.Call{
		{Op: "connect"},
		{Op: "mute"},
		{Op: "unmute"},
		{Op: "muteAudio"},
		{Op: "unmuteAudio"},
		{Op: "pauseAssistant"},
		{Op: "resumeAssistant"},
		{Op: "sendUserInput", Payload: ""},
		{Op: "sendUserInput", Payload: "u"},
		{Op: "sendAssistantInput", Payload: "a"},
		{Op: "sendSessionSettings", Payload: string(settings)},
		{Op: "sendToolMessage", Payload: string(tool)},
		{Op: "disconnect"},
	}, sess.Calls())
	require.Equal(t, []actor.Input{clearSent{}, stateSampled{Session: SessionState{}}}, emitted)
}

func TestRuntimeFailedClearIsNotArmed(t *testing.T) {
	t.Parallel()

	sess := voicetest.NewFakeSession()
	sess.Errors["sendUserInput"] = voice.ErrNotConnected
	rt := NewRuntime("test", sess, nopHost{})

	var emitted []actor.Input
	rt.HandleEffects(context.Background(), []actor.Effect{
		applyCommands{Commands: []messages.Command{messages.ClearAudioQueue{}}},
	}, func(in actor.Input) {
		emitted = append(emitted, in)
	})

	require.Len(t, emitted, 2)
	ev, ok := emitted[0].(sessionEvent)
	require.True(t, ok)
	require.Equal(t, messages.EventError, ev.Event.Type)
	require.Equal(t, stateSampled{Session: SessionState{}}, emitted[1])
}

func TestRuntimePanicsOnUnknownCommand(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("test", voicetest.NewFakeSession(), nopHost{})
	require.Panics(t, func() {
		_ = rt.apply(context.Background(), rogue{messages.Mute{}})
	})
}

func TestRuntimeStoppedSkipsEffects(t *testing.T) {
	t.Parallel()

	sess := voicetest.NewFakeSession()
	rt := NewRuntime("test", sess, nopHost{})
	rt.Stop()
	rt.HandleEffects(context.Background(), []actor.Effect{
		applyCommands{Commands: []messages.Command{messages.Mute{}}},
	}, func(actor.Input) {})
	require.Empty(t, sess.Calls())
}
