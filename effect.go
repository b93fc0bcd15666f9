package reflow

import (
	"context"
	"time"
)

// EffectKind tags an Effect variant.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectRun
	EffectFireAndForget
	EffectBatch
	EffectCancellable
	EffectDebounced
	EffectThrottled
	EffectAfterDelay
	EffectSubscription
)

func (k EffectKind) String() string {
	switch k {
	case EffectNone:
		return "none"
	case EffectRun:
		return "run"
	case EffectFireAndForget:
		return "fireAndForget"
	case EffectBatch:
		return "batch"
	case EffectCancellable:
		return "cancellable"
	case EffectDebounced:
		return "debounced"
	case EffectThrottled:
		return "throttled"
	case EffectAfterDelay:
		return "afterDelay"
	case EffectSubscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// Effect is an inert, immutable description of a side effect. Effects carry
// no runtime resources; the store interprets them after each dispatch.
type Effect[A any] struct {
	kind EffectKind
	id   string
	wait time.Duration

	run     func(ctx context.Context, send Dispatch[A]) error
	forget  func(ctx context.Context) error
	setup   func(send Dispatch[A]) func()
	members []Effect[A]
}

// Kind reports the effect's variant tag.
func (e Effect[A]) Kind() EffectKind { return e.kind }

// ID reports the caller-chosen identity for identity-scoped effects,
// or "" for the rest.
func (e Effect[A]) ID() string { return e.id }

// IsNone reports whether the effect does nothing.
func (e Effect[A]) IsNone() bool {
	return e.kind == EffectNone || (e.kind == EffectBatch && len(e.members) == 0)
}

// None is the no-op effect.
func None[A any]() Effect[A] {
	return Effect[A]{kind: EffectNone}
}

// Run launches fn immediately. A returned error is logged and never re-enters
// the dispatch loop; context.Canceled is suppressed silently.
func Run[A any](fn func(ctx context.Context, send Dispatch[A]) error) Effect[A] {
	return Effect[A]{kind: EffectRun, run: fn}
}

// FireAndForget launches fn immediately without a dispatch handle.
func FireAndForget[A any](fn func(ctx context.Context) error) Effect[A] {
	return Effect[A]{kind: EffectFireAndForget, forget: fn}
}

// Batch launches every member independently, in list order, with no join.
// One member's failure or duration never blocks another, and there is no
// relative ordering guarantee beyond the launch order.
func Batch[A any](effects ...Effect[A]) Effect[A] {
	members := make([]Effect[A], 0, len(effects))
	for _, e := range effects {
		if e.IsNone() {
			continue
		}
		members = append(members, e)
	}

	switch len(members) {
	case 0:
		return None[A]()
	case 1:
		return members[0]
	default:
		return Effect[A]{kind: EffectBatch, members: members}
	}
}

// Cancellable supersedes any pending work registered under id, in any
// discipline, before registering and launching fn. The context passed to fn
// is cancelled when a later effect supersedes this one or the store is
// destroyed; fn must observe it cooperatively.
func Cancellable[A any](id string, fn func(ctx context.Context, send Dispatch[A]) error) Effect[A] {
	return Effect[A]{kind: EffectCancellable, id: id, run: fn}
}

// Cancel is the degenerate body-less Cancellable: a pure "cancel id" request.
func Cancel[A any](id string) Effect[A] {
	return Effect[A]{kind: EffectCancellable, id: id}
}

// Debounced (re)arms a timer under id. Each effect sharing the id restarts
// the countdown; fn runs once, wait after the last restart.
func Debounced[A any](id string, wait time.Duration, fn func(ctx context.Context, send Dispatch[A]) error) Effect[A] {
	return Effect[A]{kind: EffectDebounced, id: id, wait: wait, run: fn}
}

// Throttled runs fn immediately when no window is open under id, then opens
// a window of wait. Calls inside the window collapse into at most one
// trailing run at the window's end.
func Throttled[A any](id string, wait time.Duration, fn func(ctx context.Context, send Dispatch[A]) error) Effect[A] {
	return Effect[A]{kind: EffectThrottled, id: id, wait: wait, run: fn}
}

// AfterDelay schedules fn once, wait from now. It is deliberately not
// identity-scoped and not cancellable: consumers such as the presentation
// lifecycle guard against stale deliveries instead of cancelling them.
func AfterDelay[A any](wait time.Duration, fn func(ctx context.Context, send Dispatch[A]) error) Effect[A] {
	return Effect[A]{kind: EffectAfterDelay, wait: wait, run: fn}
}

// Send is shorthand for an AfterDelay that dispatches a single action.
func Send[A any](wait time.Duration, action A) Effect[A] {
	return AfterDelay(wait, func(_ context.Context, send Dispatch[A]) error {
		send(action)
		return nil
	})
}

// Subscription registers long-lived work under id. Setup receives a dispatch
// handle and returns a cleanup; re-registering an id first runs the prior
// cleanup, atomically replacing the live subscription.
func Subscription[A any](id string, setup func(send Dispatch[A]) func()) Effect[A] {
	return Effect[A]{kind: EffectSubscription, id: id, setup: setup}
}

// MapEffect rewraps every action the effect would dispatch through f,
// lifting an effect from one action space into another. Kinds, identities,
// and delays pass through unchanged.
func MapEffect[A, B any](e Effect[A], f func(A) B) Effect[B] {
	out := Effect[B]{kind: e.kind, id: e.id, wait: e.wait}

	if e.run != nil {
		run := e.run
		out.run = func(ctx context.Context, send Dispatch[B]) error {
			return run(ctx, func(a A) { send(f(a)) })
		}
	}
	if e.forget != nil {
		out.forget = e.forget
	}
	if e.setup != nil {
		setup := e.setup
		out.setup = func(send Dispatch[B]) func() {
			return setup(func(a A) { send(f(a)) })
		}
	}
	if len(e.members) > 0 {
		out.members = make([]Effect[B], len(e.members))
		for i, m := range e.members {
			out.members[i] = MapEffect(m, f)
		}
	}

	return out
}
