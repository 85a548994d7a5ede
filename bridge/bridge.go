// Package bridge reconciles a host that resends its whole command list on
// every update with a live voice session that streams events back.
//
// Two cursors drive it: commands[CommandCursor:] is what still has to be
// applied to the session, events[EventCursor:] is what the host has not been
// told about yet. Both only move forward.
package bridge

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/jerhadf/voice-computer-use/actor"
	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
)

type options struct {
	id          string
	echoToken   string
	mailboxSize int
}

// Option configures a Bridge.
type Option func(*options)

// WithID sets the id used in log lines.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithEchoToken sets the user_message content swallowed after clearAudioQueue.
func WithEchoToken(token string) Option {
	return func(o *options) { o.echoToken = token }
}

// WithMailboxSize sets the actor mailbox size.
func WithMailboxSize(n int) Option {
	return func(o *options) { o.mailboxSize = n }
}

// Bridge owns one live session for the lifetime of one host.
type Bridge struct {
	id      string
	session voice.Session
	actor   *actor.Actor[State]

	// ctx lives until Close; callbacks use it to stop blocking on a dead mailbox.
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// New wires a bridge to session and host. Call Start before Update.
func New(session voice.Session, host Host, opts ...Option) *Bridge {
	o := options{id: "bridge", echoToken: DefaultEchoToken}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		id:      o.id,
		session: session,
		ctx:     ctx,
		cancel:  cancel,
	}
	reduce := func(s State, in actor.Input) (State, []actor.Effect) {
		return Reduce(s, resample(in, session))
	}
	b.actor = actor.New(NewState(o.echoToken), reduce, NewRuntime(o.id, session, host),
		actor.WithMailboxSize[State](o.mailboxSize),
		actor.WithHooks(actor.Hooks[State]{
			OnPanic: func(r any) {
				log.Printf("💥 [%s] Bridge loop died: %v", b.id, r)
				go b.Close()
			},
		}),
	)

	session.SetHandlers(voice.Handlers{
		OnMessage: func(msg messages.TransportMessage) {
			b.deliver(sessionEvent{Event: messages.NewMessageEvent(msg)})
		},
		OnOpen: func() {
			b.deliver(sessionEvent{Event: messages.NewOpenedEvent()})
		},
		OnClose: func() {
			b.deliver(sessionEvent{Event: messages.NewClosedEvent()})
		},
		OnError: func(e messages.ErrorPayload) {
			b.deliver(sessionEvent{Event: messages.NewErrorEvent(e.Code, e.Message)})
		},
		OnStateChange: func() {
			b.deliver(stateSampled{})
		},
	})
	return b
}

// Start runs the bridge loop.
func (b *Bridge) Start() {
	b.actor.Start()
}

// Update hands the host's current argument snapshot to the bridge.
func (b *Bridge) Update(ctx context.Context, args *messages.Args) error {
	if args == nil {
		return nil
	}
	return b.actor.Send(ctx, hostUpdate{Args: *args})
}

// State returns the current bridge state.
func (b *Bridge) State() State {
	return b.actor.State()
}

// Done closes once the bridge loop has exited.
func (b *Bridge) Done() <-chan struct{} {
	return b.actor.Done()
}

// Close disconnects the session exactly once and stops the loop. A disconnect
// failure is logged and returned, never retried.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		if err := b.session.Disconnect(); err != nil {
			log.Printf("⚠️ [%s] Disconnect failed: %v", b.id, err)
			b.closeErr = err
		}
		b.actor.Stop()
		b.cancel()
	})
	return b.closeErr
}

func (b *Bridge) deliver(in actor.Input) {
	err := b.actor.Send(b.ctx, in)
	if err != nil && !errors.Is(err, actor.ErrStopped) && !errors.Is(err, context.Canceled) {
		log.Printf("⚠️ [%s] Dropped session callback: %v", b.id, err)
	}
}
