package reflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/petermattis/goid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/acrelle/reflow/internal/registry"
	"github.com/acrelle/reflow/internal/ring"
)

const defaultHistoryLimit = 100

// HistoryEntry is one dispatched action in the store's bounded history.
type HistoryEntry[A any] struct {
	Seq    uint64
	At     time.Time
	Action A
}

// Store is the runtime: it owns the current state, runs the reducer on every
// dispatched action, and interprets the returned effects. Reducer invocations
// are serialized and run to completion; every asynchronous completion
// re-enters through Dispatch.
type Store[S, A, D any] struct {
	mu      sync.Mutex
	loopGID atomic.Int64 // goroutine currently draining the dispatch loop

	reducer Reducer[S, A, D]
	deps    D
	state   S

	clock   Clock
	logger  *slog.Logger
	tracer  trace.Tracer
	changed func(old, next S) bool

	noEffects bool
	destroyed bool

	baseCtx    context.Context
	baseCancel context.CancelFunc

	seq     uint64
	history *ring.Buffer[HistoryEntry[A]]
	pending []A // re-entrant dispatches, drained in order by the running loop

	work     *registry.Table
	throttle map[string]*throttleWindow[A]

	stateSubs  map[string]func(S)
	actionSubs map[string]func(A, S)
}

// throttleWindow tracks the at-most-one trailing call absorbed by an open
// throttle window.
type throttleWindow[A any] struct {
	trailing func(ctx context.Context, send Dispatch[A]) error
}

// New creates a store around a reducer, an initial state, and the
// dependencies handed to every reducer call. Configure it with the With*
// methods before the first dispatch.
func New[S, A, D any](reducer Reducer[S, A, D], initial S, deps D) *Store[S, A, D] {
	ctx, cancel := context.WithCancel(context.Background())

	return &Store[S, A, D]{
		reducer:    reducer,
		deps:       deps,
		state:      initial,
		clock:      SystemClock(),
		logger:     slog.Default(),
		baseCtx:    ctx,
		baseCancel: cancel,
		history:    ring.New[HistoryEntry[A]](defaultHistoryLimit),
		work:       registry.NewTable(),
		throttle:   make(map[string]*throttleWindow[A]),
		stateSubs:  make(map[string]func(S)),
		actionSubs: make(map[string]func(A, S)),
	}
}

// WithClock swaps the time source; ManualClock makes timing deterministic.
func (s *Store[S, A, D]) WithClock(c Clock) *Store[S, A, D] {
	s.clock = c
	return s
}

// WithLogger swaps the logger used for effect and listener failures.
func (s *Store[S, A, D]) WithLogger(l *slog.Logger) *Store[S, A, D] {
	s.logger = l
	return s
}

// WithTracer enables a span per dispatch. Tracing is opt-in; without a
// tracer, dispatch does no telemetry work.
func (s *Store[S, A, D]) WithTracer(t trace.Tracer) *Store[S, A, D] {
	s.tracer = t
	return s
}

// WithHistoryLimit bounds the action history ring.
func (s *Store[S, A, D]) WithHistoryLimit(n int) *Store[S, A, D] {
	s.history = ring.New[HistoryEntry[A]](n)
	return s
}

// WithChangeDetector overrides the default comparison used to suppress
// redundant state notifications. The default compares states with ==;
// non-comparable states always notify.
func (s *Store[S, A, D]) WithChangeDetector(fn func(old, next S) bool) *Store[S, A, D] {
	s.changed = fn
	return s
}

// WithoutEffects puts the store in render-only mode: reducers run and state
// updates, but returned effects are discarded. Snapshot rendering stays
// side-effect-free and deterministic.
func (s *Store[S, A, D]) WithoutEffects() *Store[S, A, D] {
	s.noEffects = true
	return s
}

// Dispatch runs the reducer against the current state, replaces the state,
// notifies subscribers, and launches the returned effect. It returns before
// any asynchronous work completes. Dispatching from inside a reducer,
// subscriber, or subscription setup on the loop goroutine queues the action;
// the running loop drains the queue in order. Dispatch after Destroy is a
// silent no-op.
func (s *Store[S, A, D]) Dispatch(action A) {
	gid := goid.Get()
	if s.loopGID.Load() == gid {
		s.pending = append(s.pending, action)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.asLoop(gid, func() { s.process(action) })
}

// asLoop runs fn as the dispatch loop goroutine, then drains re-entrant
// dispatches queued while it ran. Caller holds the lock.
func (s *Store[S, A, D]) asLoop(gid int64, fn func()) {
	s.loopGID.Store(gid)
	defer s.loopGID.Store(0)

	fn()
	for len(s.pending) > 0 && !s.destroyed {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.process(next)
	}
}

// State returns the current state. Safe to call from subscribers and
// subscription setups running on the dispatch loop.
func (s *Store[S, A, D]) State() S {
	var state S
	s.withLock(func() { state = s.state })
	return state
}

// History returns the retained dispatch history, oldest first.
func (s *Store[S, A, D]) History() []HistoryEntry[A] {
	var out []HistoryEntry[A]
	s.withLock(func() { out = s.history.Snapshot() })
	return out
}

// SubscribeState registers a state listener. It is called once immediately
// with the current state, then on every replacement that the change detector
// reports as different. The immediate call is serialized with dispatch, so it
// can never deliver an older state after a newer one was already observed.
// The returned function cancels the subscription.
func (s *Store[S, A, D]) SubscribeState(fn func(S)) func() {
	token := uuid.NewString()
	gid := goid.Get()

	if s.loopGID.Load() == gid {
		if s.destroyed {
			return func() {}
		}
		s.stateSubs[token] = fn
		s.notify("state", func() { fn(s.state) })
	} else {
		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			return func() {}
		}
		s.stateSubs[token] = fn
		s.asLoop(gid, func() {
			current := s.state
			s.notify("state", func() { fn(current) })
		})
		s.mu.Unlock()
	}

	return func() {
		s.withLock(func() { delete(s.stateSubs, token) })
	}
}

// SubscribeActions registers an action listener fired on every dispatch with
// the action and the state it produced. The returned function cancels the
// subscription.
func (s *Store[S, A, D]) SubscribeActions(fn func(A, S)) func() {
	token := uuid.NewString()

	s.withLock(func() {
		if s.destroyed {
			return
		}
		s.actionSubs[token] = fn
	})

	return func() {
		s.withLock(func() { delete(s.actionSubs, token) })
	}
}

// Destroy aborts in-flight cancellables, stops timers, best-effort-runs every
// subscription cleanup, and drops all listeners. It is idempotent, and the
// store ignores dispatches afterwards.
func (s *Store[S, A, D]) Destroy() {
	s.withLock(func() {
		if s.destroyed {
			return
		}
		s.destroyed = true
		s.baseCancel()

		s.work.Drain(func(id string, e registry.Entry) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("reflow: cleanup panicked",
						"id", id, "kind", e.Kind.String(), "panic", r)
				}
			}()
			if e.Cancel != nil {
				e.Cancel()
			}
		})

		clear(s.throttle)
		clear(s.stateSubs)
		clear(s.actionSubs)
		s.pending = nil
	})
}

// withLock runs fn under the store lock unless the calling goroutine is the
// dispatch loop, which already holds it.
func (s *Store[S, A, D]) withLock(fn func()) {
	if s.loopGID.Load() == goid.Get() {
		fn()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// process runs one action to completion. Caller holds the lock and owns the
// loop goroutine.
func (s *Store[S, A, D]) process(action A) {
	var span trace.Span
	if s.tracer != nil {
		_, span = s.tracer.Start(s.baseCtx, "reflow.dispatch",
			trace.WithAttributes(attribute.String("reflow.action", actionName(action))))
		defer span.End()
	}

	old := s.state
	next, effect := s.reducer(old, action, s.deps)
	s.state = next

	s.seq++
	s.history.Push(HistoryEntry[A]{Seq: s.seq, At: s.clock.Now(), Action: action})
	if span != nil {
		span.SetAttributes(
			attribute.Int64("reflow.seq", int64(s.seq)),
			attribute.String("reflow.effect", effect.Kind().String()),
		)
	}

	// snapshot listeners first: a listener may subscribe or cancel while
	// being notified
	actionFns := make([]func(A, S), 0, len(s.actionSubs))
	for _, fn := range s.actionSubs {
		actionFns = append(actionFns, fn)
	}
	for _, fn := range actionFns {
		fn := fn
		s.notify("action", func() { fn(action, next) })
	}

	if s.stateChanged(old, next) {
		stateFns := make([]func(S), 0, len(s.stateSubs))
		for _, fn := range s.stateSubs {
			stateFns = append(stateFns, fn)
		}
		for _, fn := range stateFns {
			fn := fn
			s.notify("state", func() { fn(next) })
		}
	}

	// a listener may have destroyed the store re-entrantly; executing the
	// effect now would register work into the already-drained table
	if s.noEffects || s.destroyed {
		return
	}
	s.execute(effect)
}

func (s *Store[S, A, D]) stateChanged(old, next S) bool {
	if s.changed != nil {
		return s.changed(old, next)
	}
	return !isEqual(old, next)
}

// isEqual mirrors replacement-identity checking: comparable states compare
// with ==, anything else counts as changed.
func isEqual[S any](a, b S) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return any(a) == any(b)
}

// execute interprets one effect. Caller holds the lock; bodies launch on
// their own goroutines so dispatch never blocks on them.
func (s *Store[S, A, D]) execute(e Effect[A]) {
	switch e.kind {
	case EffectNone:

	case EffectBatch:
		for _, member := range e.members {
			s.execute(member)
		}

	case EffectRun:
		go s.runBody(s.baseCtx, e.run, e.kind, "")

	case EffectFireAndForget:
		forget := e.forget
		go s.runBody(s.baseCtx, func(ctx context.Context, _ Dispatch[A]) error {
			return forget(ctx)
		}, e.kind, "")

	case EffectCancellable:
		s.executeCancellable(e)

	case EffectDebounced:
		s.executeDebounced(e)

	case EffectThrottled:
		s.executeThrottled(e)

	case EffectAfterDelay:
		run := e.run
		s.clock.AfterFunc(e.wait, func() {
			s.runBody(s.baseCtx, run, EffectAfterDelay, "")
		})

	case EffectSubscription:
		s.executeSubscription(e)
	}
}

func (s *Store[S, A, D]) executeCancellable(e Effect[A]) {
	s.work.Supersede(e.id)
	if e.run == nil {
		// pure "cancel id" request
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	token := s.work.Put(e.id, registry.Entry{Kind: registry.InFlight, Cancel: cancel})

	run := e.run
	id := e.id
	go func() {
		s.runBody(ctx, run, EffectCancellable, id)
		s.withLock(func() { s.work.Release(id, token) })
		cancel()
	}()
}

func (s *Store[S, A, D]) executeDebounced(e Effect[A]) {
	s.work.Supersede(e.id)

	run := e.run
	id := e.id
	var token uint64

	timer := s.clock.AfterFunc(e.wait, func() {
		live := false
		s.withLock(func() { live = s.work.Release(id, token) })
		if !live {
			return
		}
		s.runBody(s.baseCtx, run, EffectDebounced, id)
	})
	token = s.work.Put(id, registry.Entry{Kind: registry.Debounce, Cancel: func() { timer.Stop() }})
}

func (s *Store[S, A, D]) executeThrottled(e Effect[A]) {
	id := e.id

	if entry, ok := s.work.Get(id); ok && entry.Kind == registry.Throttle {
		// window open: absorb into a single trailing run, latest wins
		if win := s.throttle[id]; win != nil && e.run != nil {
			win.trailing = e.run
		}
		return
	}

	// a pending entry of another kind under this id gives way
	s.work.Supersede(id)

	if e.run != nil {
		run := e.run
		go s.runBody(s.baseCtx, run, EffectThrottled, id)
	}

	win := &throttleWindow[A]{}
	s.throttle[id] = win

	var token uint64
	timer := s.clock.AfterFunc(e.wait, func() {
		var trailing func(ctx context.Context, send Dispatch[A]) error
		live := false
		s.withLock(func() {
			if live = s.work.Release(id, token); live {
				trailing = win.trailing
				delete(s.throttle, id)
			}
		})
		if !live || trailing == nil {
			return
		}
		s.runBody(s.baseCtx, trailing, EffectThrottled, id)
	})
	token = s.work.Put(id, registry.Entry{Kind: registry.Throttle, Cancel: func() {
		timer.Stop()
		delete(s.throttle, id)
	}})
}

func (s *Store[S, A, D]) executeSubscription(e Effect[A]) {
	s.work.Supersede(e.id)
	if e.setup == nil {
		return
	}

	cleanup, ok := s.runSetup(e.setup, e.id)
	if !ok {
		return
	}

	s.work.Put(e.id, registry.Entry{Kind: registry.Subscription, Cancel: func() {
		if cleanup != nil {
			cleanup()
		}
	}})
}

func (s *Store[S, A, D]) runSetup(setup func(Dispatch[A]) func(), id string) (cleanup func(), ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reflow: subscription setup panicked", "id", id, "panic", r)
		}
	}()

	return setup(s.Dispatch), true
}

// runBody executes one effect body, isolating failures from the dispatch
// loop. Cancellation-induced errors are suppressed, not logged.
func (s *Store[S, A, D]) runBody(ctx context.Context, fn func(context.Context, Dispatch[A]) error, kind EffectKind, id string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reflow: effect panicked",
				"kind", kind.String(), "id", id, "panic", r)
		}
	}()

	if fn == nil {
		return
	}
	if err := fn(ctx, s.Dispatch); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("reflow: effect failed",
			"kind", kind.String(), "id", id, "error", err)
	}
}

// notify runs one listener, recovering so a throwing listener never prevents
// the others from being notified.
func (s *Store[S, A, D]) notify(role string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reflow: listener panicked", "listener", role, "panic", r)
		}
	}()

	fn()
}
