package bridge

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/jerhadf/voice-computer-use/actor"
	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
)

// Host receives what the bridge publishes. Calls are one-way; the bridge
// never waits for an acknowledgement.
type Host interface {
	SetValue(value messages.ComponentValue)
	RenderDebug(view messages.DebugPayload)
	ReportViolation(v ProtocolViolation)
}

// Runtime executes bridge effects against the live session and the host.
type Runtime struct {
	id      string
	session voice.Session
	host    Host
	stopped atomic.Bool
}

// NewRuntime returns a runtime for one bridge. id only prefixes log lines.
func NewRuntime(id string, session voice.Session, host Host) *Runtime {
	return &Runtime{id: id, session: session, host: host}
}

// HandleEffects implements actor.Runtime.
func (r *Runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		if r.stopped.Load() {
			return
		}
		switch e := eff.(type) {
		case applyCommands:
			for i, cmd := range e.Commands {
				err := r.apply(ctx, cmd)
				if err != nil {
					log.Printf("⚠️ [%s] Command %d (%s) failed: %v", r.id, e.Start+i, cmd.Type(), err)
					emit(sessionEvent{Event: messages.NewErrorEvent(messages.ErrCodeVoiceError, err.Error())})
					continue
				}
				if _, ok := cmd.(messages.ClearAudioQueue); ok {
					emit(clearSent{})
				}
			}
			emit(stateSampled{Session: sample(r.session)})
		case publish:
			r.host.SetValue(e.Value)
		case renderDebug:
			r.host.RenderDebug(e.View)
		case reportViolation:
			log.Printf("⚠️ [%s] Protocol violation: %v", r.id, e.Violation)
			r.host.ReportViolation(e.Violation)
		}
	}
}

// Stop implements actor.Runtime.
func (r *Runtime) Stop() {
	r.stopped.Store(true)
}

// apply maps one command to one session operation. The switch covers the
// closed Command union; reaching the default branch is a programming error.
func (r *Runtime) apply(ctx context.Context, cmd messages.Command) error {
	s := r.session
	switch c := cmd.(type) {
	case messages.Mute:
		s.Mute()
	case messages.Unmute:
		s.Unmute()
	case messages.MuteAudio:
		s.MuteAudio()
	case messages.UnmuteAudio:
		s.UnmuteAudio()
	case messages.PauseAssistant:
		return s.PauseAssistant()
	case messages.ResumeAssistant:
		return s.ResumeAssistant()
	case messages.Connect:
		return s.Connect(ctx)
	case messages.Disconnect:
		return s.Disconnect()
	case messages.ClearAudioQueue:
		return s.SendUserInput("")
	case messages.SendUserInput:
		return s.SendUserInput(c.Message)
	case messages.SendAssistantInput:
		return s.SendAssistantInput(c.Message)
	case messages.SendSessionSettings:
		return s.SendSessionSettings(c.Message)
	case messages.SendToolMessage:
		return s.SendToolMessage(c.Message)
	default:
		panic(fmt.Sprintf("bridge: unhandled command %T", cmd))
	}
	return nil
}

func sample(s voice.Session) SessionState {
	return SessionState{
		IsMuted:     s.IsMuted(),
		IsConnected: s.ReadyState() == voice.ReadyStateOpen,
	}
}
