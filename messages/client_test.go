package messages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeHostMessageUpdate(t *testing.T) {
	t.Parallel()

	raw := `{"type":"update","payload":{
		"commands":[{"type":"connect"},{"type":"sendUserInput","message":"hi"}],
		"listen_to":["opened"],
		"hume_api_key":"k","config_id":"c","debug":true}}`
	got, err := DecodeHostMessage([]byte(raw))
	require.NoError(t, err)

	args, ok := got.(*Args)
	require.True(t, ok)
	require.Equal(t, CommandList{Connect{}, SendUserInput{Message: "hi"}}, args.Commands)
	require.Equal(t, []string{"opened"}, args.ListenTo)
	require.Equal(t, "k", args.HumeAPIKey)
	require.Equal(t, "c", args.ConfigID)
	require.True(t, args.Debug)
}

func TestDecodeArgsListenToNullVersusEmpty(t *testing.T) {
	t.Parallel()

	args, err := DecodeArgs([]byte(`{"commands":[]}`))
	require.NoError(t, err)
	require.Nil(t, args.ListenTo)
	require.Empty(t, args.Commands)

	args, err = DecodeArgs([]byte(`{"commands":[],"listen_to":[]}`))
	require.NoError(t, err)
	require.NotNil(t, args.ListenTo)
	require.Empty(t, args.ListenTo)
}

func TestDecodeArgsRejectsWholeListOnBadCommand(t *testing.T) {
	t.Parallel()

	_, err := DecodeArgs([]byte(`{"commands":[{"type":"mute"},{"type":"explode"}]}`))
	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	require.Equal(t, "unsupported", decErr.Code)
	require.Equal(t, "commands[1].type", decErr.Param)
	require.Equal(t, "unsupported command type explode (commands[1].type)", decErr.Error())
}

func TestDecodeHostMessageControl(t *testing.T) {
	t.Parallel()

	got, err := DecodeHostMessage([]byte(`{"type":"control","payload":{"action":"ping"}}`))
	require.NoError(t, err)
	require.Equal(t, ControlPayload{Action: "ping"}, got)

	_, err = DecodeHostMessage([]byte(`{"type":"control","payload":{"action":"reboot"}}`))
	require.Error(t, err)
}

func TestDecodeHostMessageErrors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		`{`,
		`{"payload":{}}`,
		`{"type":"teleport","payload":{}}`,
		`{"type":"update"}`,
		`{"type":"update","payload":{"commands":{}}}`,
	} {
		_, err := DecodeHostMessage([]byte(raw))
		require.Error(t, err, raw)
	}
}

func TestNewUpdateMessageDecodes(t *testing.T) {
	t.Parallel()

	frame, err := NewUpdateMessage(Args{
		Commands: CommandList{PauseAssistant{}, SendAssistantInput{Message: "ok"}},
		ListenTo: []string{"message.user_message"},
	})
	require.NoError(t, err)

	got, err := DecodeHostMessage(frame)
	require.NoError(t, err)
	args := got.(*Args)
	require.Equal(t, CommandList{PauseAssistant{}, SendAssistantInput{Message: "ok"}}, args.Commands)
	require.Equal(t, []string{"message.user_message"}, args.ListenTo)

	ping, err := NewPingMessage()
	require.NoError(t, err)
	got, err = DecodeHostMessage(ping)
	require.NoError(t, err)
	require.Equal(t, ControlPayload{Action: "ping"}, got)
}
