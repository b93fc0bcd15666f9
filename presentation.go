package reflow

import "time"

// Phase is the animation-lifecycle status of a presented destination.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePresenting
	PhasePresented
	PhaseDismissing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePresenting:
		return "presenting"
	case PhasePresented:
		return "presented"
	case PhaseDismissing:
		return "dismissing"
	default:
		return "unknown"
	}
}

// Timeout fallback multipliers. A stuck exit leaks resources and blocks
// interaction longer than a stuck entrance, so exits get more slack.
const (
	enterTimeoutFactor = 2
	exitTimeoutFactor  = 3
)

// Presentation coordinates enter/exit timing between state and an external
// rendering layer. The machine only tracks *that* a transition is pending;
// the rendering layer observes Phase and reports back through the owning
// reducer's completion events.
//
// Transitions are strictly guarded: each one checks the current phase before
// applying, so a late completion from an animation cycle that has already
// been superseded is a no-op. While dismissing, Content stays populated so
// exit rendering has data; the owning reducer clears its destination field
// together with the presentation state when FinishDismissing applies.
type Presentation[T any] struct {
	Phase    Phase
	Content  T
	Duration time.Duration
}

// Present moves idle → presenting, capturing the initial content. From any
// other phase it reports false and returns the receiver unchanged.
func (p Presentation[T]) Present(content T, duration time.Duration) (Presentation[T], bool) {
	if p.Phase != PhaseIdle {
		return p, false
	}
	return Presentation[T]{Phase: PhasePresenting, Content: content, Duration: duration}, true
}

// FinishPresenting moves presenting → presented with content unchanged. It
// serves both the completion and the timeout event; whichever arrives first
// wins, and the loser no-ops here.
func (p Presentation[T]) FinishPresenting() (Presentation[T], bool) {
	if p.Phase != PhasePresenting {
		return p, false
	}
	return Presentation[T]{Phase: PhasePresented, Content: p.Content}, true
}

// Dismiss moves presented → dismissing, capturing the *current* content,
// which may have diverged from the originally presented value.
func (p Presentation[T]) Dismiss(current T, duration time.Duration) (Presentation[T], bool) {
	if p.Phase != PhasePresented {
		return p, false
	}
	return Presentation[T]{Phase: PhaseDismissing, Content: current, Duration: duration}, true
}

// FinishDismissing moves dismissing → idle, returning the zero value. The
// owning reducer must clear its destination field in the same update.
func (p Presentation[T]) FinishDismissing() (Presentation[T], bool) {
	if p.Phase != PhaseDismissing {
		return p, false
	}
	return Presentation[T]{}, true
}

// Active reports whether the rendering layer should draw at all.
func (p Presentation[T]) Active() bool {
	return p.Phase != PhaseIdle
}

// Interactive reports whether input should be permitted.
func (p Presentation[T]) Interactive() bool {
	return p.Phase == PhasePresented
}

// PresentTimers schedules the pair of deferred events for an entrance: the
// expected completion at duration and a timeout fallback at twice that.
// Phase guards make whichever arrives second a no-op.
func PresentTimers[A any](duration time.Duration, completed, timedOut A) Effect[A] {
	return Batch(
		Send(duration, completed),
		Send(duration*enterTimeoutFactor, timedOut),
	)
}

// DismissTimers schedules the completion/timeout pair for an exit, with the
// larger exit multiplier.
func DismissTimers[A any](duration time.Duration, completed, timedOut A) Effect[A] {
	return Batch(
		Send(duration, completed),
		Send(duration*exitTimeoutFactor, timedOut),
	)
}
