package gemini

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jerhadf/voice-computer-use/voice"
)

func newTestProxy(t *testing.T) *Proxy {
	t.Helper()
	gp, err := NewProxy(context.Background(), Config{APIKey: "test-key"})
	require.NoError(t, err)
	return gp
}

func TestProxyDefaults(t *testing.T) {
	t.Parallel()

	gp := newTestProxy(t)
	require.Equal(t, DefaultModel, gp.cfg.Model)
	require.Equal(t, voice.ReadyStateIdle, gp.ReadyState())

	cfg := gp.liveConfig()
	require.Nil(t, cfg.SystemInstruction)
	require.NotNil(t, cfg.InputAudioTranscription)
	require.Equal(t, "Zephyr", cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
}

func TestProxyNotConnected(t *testing.T) {
	t.Parallel()

	gp := newTestProxy(t)
	require.ErrorIs(t, gp.SendUserInput("hi"), voice.ErrNotConnected)
	require.ErrorIs(t, gp.SendAssistantInput("hi"), voice.ErrNotConnected)
	require.ErrorIs(t, gp.SendToolMessage(json.RawMessage(`{}`)), voice.ErrNotConnected)
	require.NoError(t, gp.Disconnect())
}

func TestProxyUnsupported(t *testing.T) {
	t.Parallel()

	gp := newTestProxy(t)
	require.ErrorIs(t, gp.PauseAssistant(), ErrUnsupported)
	require.ErrorIs(t, gp.ResumeAssistant(), ErrUnsupported)
	require.ErrorIs(t, gp.SendSessionSettings(json.RawMessage(`{}`)), ErrUnsupported)
}

func TestProxyMuteFlags(t *testing.T) {
	t.Parallel()

	gp := newTestProxy(t)
	gp.Mute()
	gp.MuteAudio()
	require.True(t, gp.IsMuted())
	require.True(t, gp.IsAudioMuted())
	gp.Unmute()
	gp.UnmuteAudio()
	require.False(t, gp.IsMuted())
	require.False(t, gp.IsAudioMuted())
}

func TestProxyRemembersToolNames(t *testing.T) {
	t.Parallel()

	gp := newTestProxy(t)
	gp.rememberToolCalls(toolCallMessage("c1", "lookup"))
	require.Equal(t, "lookup", gp.toolNames["c1"])

	gp.rememberToolCalls(cancelMessage("c1"))
	require.NotContains(t, gp.toolNames, "c1")
}
