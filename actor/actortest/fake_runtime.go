// Package actortest provides test helpers for the actor package.
package actortest

import (
	"context"
	"sync"

	"github.com/jerhadf/voice-computer-use/actor"
)

// FakeRuntime records effects and can synthesize follow-up inputs.
type FakeRuntime struct {
	mu      sync.Mutex
	effects []actor.Effect
	stopped int

	// EmitFn, when set, runs for every effect inside HandleEffects.
	EmitFn func(eff actor.Effect, emit func(actor.Input))
}

// HandleEffects implements actor.Runtime.
func (r *FakeRuntime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	r.mu.Lock()
	r.effects = append(r.effects, effects...)
	emitFn := r.EmitFn
	r.mu.Unlock()

	if emitFn != nil {
		for _, eff := range effects {
			emitFn(eff, emit)
		}
	}
}

// Stop implements actor.Runtime.
func (r *FakeRuntime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
}

// Effects returns a snapshot of recorded effects.
func (r *FakeRuntime) Effects() []actor.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]actor.Effect, len(r.effects))
	copy(out, r.effects)
	return out
}

// Stopped reports how many times Stop ran.
func (r *FakeRuntime) Stopped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
