// Package actor runs a state value on a single goroutine.
//
// A pure reducer turns (state, input) into the next state plus a list of
// effects; a Runtime executes the effects. All inputs go through one ordered
// mailbox, so the state is never touched by two goroutines at once.
package actor

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned once the actor no longer accepts inputs.
var ErrStopped = errors.New("actor stopped")

// Input is an item delivered to the mailbox.
type Input interface {
	isActorInput()
}

// Effect is a side effect requested by the reducer. Effects are data; the
// Runtime decides how to execute them.
type Effect interface {
	isActorEffect()
}

// InputBase can be embedded to satisfy Input.
type InputBase struct{}

func (InputBase) isActorInput() {}

// EffectBase can be embedded to satisfy Effect.
type EffectBase struct{}

func (EffectBase) isActorEffect() {}

// ReducerFunc is a deterministic state transition without I/O.
type ReducerFunc[S any] func(state S, input Input) (next S, effects []Effect)

// Runtime executes effects on the actor goroutine, in order.
//
// emit queues follow-up inputs that are reduced right after the current
// input, ahead of anything else in the mailbox. It must only be called
// before HandleEffects returns; later inputs go through Actor.Send.
type Runtime interface {
	HandleEffects(ctx context.Context, effects []Effect, emit func(Input))
	Stop()
}

// Hooks observe the loop. Any field may be nil.
type Hooks[S any] struct {
	OnTransition func(prev, next S, input Input)
	// OnPanic receives a recovered panic. When nil the panic propagates.
	OnPanic func(recovered any)
}

// Option configures an Actor.
type Option[S any] func(*Actor[S])

// WithHooks attaches hooks.
func WithHooks[S any](hooks Hooks[S]) Option[S] {
	return func(a *Actor[S]) { a.hooks = hooks }
}

// WithMailboxSize sets the mailbox buffer size.
func WithMailboxSize[S any](n int) Option[S] {
	return func(a *Actor[S]) {
		if n > 0 {
			a.inbox = make(chan Input, n)
		}
	}
}

// Actor owns a state of type S.
type Actor[S any] struct {
	reduce  ReducerFunc[S]
	runtime Runtime
	hooks   Hooks[S]

	mu     sync.Mutex
	state  S
	inbox  chan Input
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	start  sync.Once
	stop   sync.Once
}

// New creates a stopped actor; call Start to run it.
func New[S any](initial S, reducer ReducerFunc[S], runtime Runtime, opts ...Option[S]) *Actor[S] {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Actor[S]{
		reduce:  reducer,
		runtime: runtime,
		state:   initial,
		inbox:   make(chan Input, 256),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the loop. Calling it more than once has no effect.
func (a *Actor[S]) Start() {
	a.start.Do(func() { go a.loop() })
}

// Stop cancels the loop and stops the runtime. Safe to call repeatedly.
func (a *Actor[S]) Stop() {
	a.stop.Do(func() {
		a.cancel()
		if a.runtime != nil {
			a.runtime.Stop()
		}
	})
}

// Done closes when the loop exits.
func (a *Actor[S]) Done() <-chan struct{} { return a.done }

// Send delivers an input, blocking while the mailbox is full. It fails with
// ErrStopped once the actor is stopped, or with ctx.Err().
func (a *Actor[S]) Send(ctx context.Context, input Input) error {
	if input == nil {
		return nil
	}
	select {
	case <-a.ctx.Done():
		return ErrStopped
	default:
	}
	select {
	case a.inbox <- input:
		return nil
	case <-a.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a copy of the current state.
func (a *Actor[S]) State() S {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Actor[S]) loop() {
	defer close(a.done)
	defer func() {
		if r := recover(); r != nil {
			a.cancel()
			if a.hooks.OnPanic != nil {
				a.hooks.OnPanic(r)
				return
			}
			panic(r)
		}
	}()

	var pending []Input
	emit := func(in Input) {
		if in != nil {
			pending = append(pending, in)
		}
	}

	for {
		var in Input
		if len(pending) > 0 {
			in, pending = pending[0], pending[1:]
		} else {
			select {
			case <-a.ctx.Done():
				return
			case in = <-a.inbox:
			}
		}
		if in == nil {
			continue
		}
		a.step(in, emit)
	}
}

func (a *Actor[S]) step(in Input, emit func(Input)) {
	a.mu.Lock()
	prev := a.state
	a.mu.Unlock()

	next, effects := a.reduce(prev, in)

	a.mu.Lock()
	a.state = next
	a.mu.Unlock()

	if a.hooks.OnTransition != nil {
		a.hooks.OnTransition(prev, next, in)
	}
	if a.runtime != nil && len(effects) > 0 {
		a.runtime.HandleEffects(a.ctx, effects, emit)
	}
}

// Step applies reducer once. It is meant for reducer unit tests.
func Step[S any](state S, input Input, reducer ReducerFunc[S]) (S, []Effect) {
	return reducer(state, input)
}
