package bridge

import (
	"sort"

	"github.com/jerhadf/voice-computer-use/messages"
)

// DefaultListenTo is used when the host does not send listen_to.
var DefaultListenTo = []string{
	"message." + messages.MessageUserMessage,
	"message." + messages.MessageChatMetadata,
	string(messages.EventOpened),
	string(messages.EventClosed),
	string(messages.EventError),
}

// ListenFilter is the set of event tokens that trigger a publish.
// The zero value matches nothing.
type ListenFilter struct {
	tokens map[string]struct{}
}

// NewListenFilter builds a filter from host tokens. A nil slice selects
// DefaultListenTo; an empty, non-nil slice matches nothing.
func NewListenFilter(tokens []string) ListenFilter {
	if tokens == nil {
		tokens = DefaultListenTo
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return ListenFilter{tokens: set}
}

// Tokens returns the filter tokens in sorted order.
func (f ListenFilter) Tokens() []string {
	out := make([]string, 0, len(f.tokens))
	for t := range f.tokens {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Matches reports whether ev is listened to.
func (f ListenFilter) Matches(ev messages.ChatEvent) bool {
	return listenedTo(f, ev)
}

func listenedTo(f ListenFilter, ev messages.ChatEvent) bool {
	_, ok := f.tokens[ev.Listenable()]
	return ok
}

// anyListened reports whether any event in evs passes the filter.
func anyListened(f ListenFilter, evs []messages.ChatEvent) bool {
	for _, ev := range evs {
		if listenedTo(f, ev) {
			return true
		}
	}
	return false
}
