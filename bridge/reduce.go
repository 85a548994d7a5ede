package bridge

import (
	"fmt"
	"strings"

	"github.com/jerhadf/voice-computer-use/actor"
	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
)

// Reduce is the bridge reducer. It holds the three reconciliation steps:
// dispatching the unseen command suffix, collecting session events, and
// deciding whether the host must see a new snapshot.
func Reduce(s State, in actor.Input) (State, []actor.Effect) {
	switch in := in.(type) {
	case hostUpdate:
		return reduceHostUpdate(s, in.Args)
	case sessionEvent:
		return reduceSessionEvent(s, in.Event, in.Session)
	case stateSampled:
		return report(s, in.Session, nil)
	case clearSent:
		s.PendingClears++
		return s, nil
	default:
		return s, nil
	}
}

func reduceHostUpdate(s State, args messages.Args) (State, []actor.Effect) {
	s.Filter = NewListenFilter(args.ListenTo)
	s.Debug = args.Debug

	var effects []actor.Effect
	cmds := args.Commands
	if len(cmds) < s.CommandCursor {
		s.Violations++
		effects = append(effects, reportViolation{
			Violation: ProtocolViolation{Cursor: s.CommandCursor, Length: len(cmds)},
		})
		return s, withDebug(s, effects)
	}

	suffix := cmds[s.CommandCursor:]
	if len(suffix) > 0 {
		effects = append(effects, applyCommands{
			Start:    s.CommandCursor,
			Commands: suffix[:len(suffix):len(suffix)],
		})
	}
	s.Commands = cmds[:len(cmds):len(cmds)]
	s.CommandCursor = len(cmds)
	return s, withDebug(s, effects)
}

// resample refreshes the session flags carried by in. The bridge calls it on
// the actor goroutine, so the flags are the ones in force when in is reduced
// rather than when the transport fired the callback.
func resample(in actor.Input, session voice.Session) actor.Input {
	switch in := in.(type) {
	case sessionEvent:
		in.Session = sample(session)
		return in
	case stateSampled:
		in.Session = sample(session)
		return in
	default:
		return in
	}
}

func reduceSessionEvent(s State, ev messages.ChatEvent, sampled SessionState) (State, []actor.Effect) {
	if s.isClearEcho(ev) {
		s.PendingClears--
		return report(s, sampled, nil)
	}
	s.Events = append(s.Events, ev)
	return report(s, sampled, nil)
}

// isClearEcho reports whether ev is the user_message echoed for an empty
// input sent by clearAudioQueue.
func (s State) isClearEcho(ev messages.ChatEvent) bool {
	if s.PendingClears <= 0 || ev.Type != messages.EventMessage || ev.Message == nil {
		return false
	}
	content, ok := ev.Message.UserContent()
	if !ok {
		return false
	}
	return content == "" || content == s.EchoToken
}

// report publishes at most one snapshot: when an unreported event matches the
// filter, or when the sampled session state differs from the last published.
func report(s State, sampled SessionState, effects []actor.Effect) (State, []actor.Effect) {
	matched := anyListened(s.Filter, s.Events[s.EventCursor:])
	changed := sampled != s.Session
	s.Session = sampled
	if matched {
		s.EventCursor = len(s.Events)
	}
	if matched || changed {
		effects = append(effects, publish{Value: s.Value()})
	}
	return s, withDebug(s, effects)
}

func withDebug(s State, effects []actor.Effect) []actor.Effect {
	if !s.Debug {
		return effects
	}
	return append(effects, renderDebug{View: s.DebugView()})
}

// DebugView renders the bridge internals for a host running with debug on.
func (s State) DebugView() messages.DebugPayload {
	cmds := make([]messages.IndexedCommand, 0, len(s.Commands))
	var b strings.Builder
	fmt.Fprintf(&b, "command cursor: %d\n", s.CommandCursor)
	for i, cmd := range s.Commands {
		cmds = append(cmds, messages.IndexedCommand{Index: i, Type: cmd.Type(), Command: cmd})
		fmt.Fprintf(&b, "  %d. %s\n", i, cmd.Type())
	}
	fmt.Fprintf(&b, "event cursor: %d\n", s.EventCursor)
	for i, ev := range s.Events {
		fmt.Fprintf(&b, "  %d. %s\n", i, ev.Listenable())
	}
	if s.Violations > 0 {
		fmt.Fprintf(&b, "violations: %d\n", s.Violations)
	}
	return messages.DebugPayload{
		CommandCursor: s.CommandCursor,
		Commands:      cmds,
		EventCursor:   s.EventCursor,
		Events:        s.snapshot(),
		Violations:    s.Violations,
		Text:          b.String(),
	}
}
