package host

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jerhadf/voice-computer-use/messages"
)

func TestEventCursorNext(t *testing.T) {
	t.Parallel()

	opened := messages.NewOpenedEvent()
	closed := messages.NewClosedEvent()
	failed := messages.NewErrorEvent("E", "x")

	var c EventCursor
	require.Equal(t, []messages.ChatEvent{opened}, c.Next([]messages.ChatEvent{opened}))
	require.Nil(t, c.Next([]messages.ChatEvent{opened}))
	require.Equal(t, []messages.ChatEvent{closed, failed}, c.Next([]messages.ChatEvent{opened, closed, failed}))
	require.Equal(t, 3, c.Position())

	// A shorter snapshot never moves the cursor back.
	require.Nil(t, c.Next([]messages.ChatEvent{opened}))
	require.Equal(t, 3, c.Position())
}
