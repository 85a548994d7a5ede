package host

import "github.com/jerhadf/voice-computer-use/messages"

// EventCursor hands out each event of successive snapshots once.
type EventCursor struct {
	n int
}

// Next returns the events not returned before. A snapshot shorter than what
// was already consumed yields nothing and leaves the cursor where it is.
func (c *EventCursor) Next(events []messages.ChatEvent) []messages.ChatEvent {
	if len(events) <= c.n {
		return nil
	}
	fresh := events[c.n:]
	c.n = len(events)
	return fresh
}

// Position is the number of events consumed so far.
func (c *EventCursor) Position() int { return c.n }
