package actor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jerhadf/voice-computer-use/actor"
	"github.com/jerhadf/voice-computer-use/actor/actortest"
)

type addInput struct {
	actor.InputBase
	n int
}

type echoInput struct {
	actor.InputBase
	n int
}

type addEffect struct {
	actor.EffectBase
	n int
}

func sumReducer(state []int, input actor.Input) ([]int, []actor.Effect) {
	switch in := input.(type) {
	case addInput:
		return append(state, in.n), []actor.Effect{addEffect{n: in.n}}
	case echoInput:
		return append(state, -in.n), nil
	}
	return state, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestActorProcessesInputsSequentially(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{}
	a := actor.New[[]int](nil, sumReducer, rt)
	a.Start()
	defer a.Stop()

	for i := 1; i <= 5; i++ {
		require.NoError(t, a.Send(context.Background(), addInput{n: i}))
	}

	waitFor(t, func() bool { return len(a.State()) == 5 })
	require.Equal(t, []int{1, 2, 3, 4, 5}, a.State())
	require.Len(t, rt.Effects(), 5)
}

func TestActorEmittedInputsRunBeforeMailbox(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{
		EmitFn: func(eff actor.Effect, emit func(actor.Input)) {
			if e, ok := eff.(addEffect); ok {
				emit(echoInput{n: e.n})
			}
		},
	}
	a := actor.New[[]int](nil, sumReducer, rt)
	a.Start()
	defer a.Stop()

	require.NoError(t, a.Send(context.Background(), addInput{n: 1}))
	require.NoError(t, a.Send(context.Background(), addInput{n: 2}))

	waitFor(t, func() bool { return len(a.State()) == 4 })
	require.Equal(t, []int{1, -1, 2, -2}, a.State())
}

func TestActorSendAfterStop(t *testing.T) {
	t.Parallel()

	rt := &actortest.FakeRuntime{}
	a := actor.New[[]int](nil, sumReducer, rt)
	a.Start()
	a.Stop()
	a.Stop()

	<-a.Done()
	require.ErrorIs(t, a.Send(context.Background(), addInput{n: 1}), actor.ErrStopped)
	require.Equal(t, 1, rt.Stopped())
}

func TestActorSendRespectsContext(t *testing.T) {
	t.Parallel()

	// Never started, so the single mailbox slot fills up.
	a := actor.New[[]int](nil, sumReducer, nil, actor.WithMailboxSize[[]int](1))
	defer a.Stop()

	require.NoError(t, a.Send(context.Background(), addInput{n: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, a.Send(ctx, addInput{n: 2}), context.DeadlineExceeded)
}

func TestActorPanicHook(t *testing.T) {
	t.Parallel()

	recovered := make(chan any, 1)
	reducer := func(state int, input actor.Input) (int, []actor.Effect) {
		panic("boom")
	}
	a := actor.New[int](0, reducer, nil, actor.WithHooks(actor.Hooks[int]{
		OnPanic: func(r any) { recovered <- r },
	}))
	a.Start()

	require.NoError(t, a.Send(context.Background(), addInput{n: 1}))
	select {
	case r := <-recovered:
		require.Equal(t, "boom", r)
	case <-time.After(2 * time.Second):
		t.Fatal("panic hook not called")
	}
	<-a.Done()
	require.ErrorIs(t, a.Send(context.Background(), addInput{n: 1}), actor.ErrStopped)
}

func TestStep(t *testing.T) {
	t.Parallel()

	next, effects := actor.Step([]int{7}, addInput{n: 3}, sumReducer)
	require.Equal(t, []int{7, 3}, next)
	require.Equal(t, []actor.Effect{addEffect{n: 3}}, effects)
}
