package reflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPresentation(t *testing.T) {
	t.Run("full lifecycle", func(t *testing.T) {
		var p Presentation[string]
		assert.Equal(t, PhaseIdle, p.Phase)
		assert.False(t, p.Active())

		p, ok := p.Present("sheet", 250*time.Millisecond)
		assert.True(t, ok)
		assert.Equal(t, PhasePresenting, p.Phase)
		assert.Equal(t, "sheet", p.Content)
		assert.Equal(t, 250*time.Millisecond, p.Duration)
		assert.True(t, p.Active())
		assert.False(t, p.Interactive())

		p, ok = p.FinishPresenting()
		assert.True(t, ok)
		assert.Equal(t, PhasePresented, p.Phase)
		assert.Equal(t, "sheet", p.Content)
		assert.True(t, p.Interactive())

		p, ok = p.Dismiss("sheet-edited", 150*time.Millisecond)
		assert.True(t, ok)
		assert.Equal(t, PhaseDismissing, p.Phase)
		assert.Equal(t, "sheet-edited", p.Content)
		assert.True(t, p.Active())
		assert.False(t, p.Interactive())

		p, ok = p.FinishDismissing()
		assert.True(t, ok)
		assert.Equal(t, Presentation[string]{}, p)
	})

	t.Run("transitions are guarded by phase", func(t *testing.T) {
		at := func(phase Phase) Presentation[string] {
			return Presentation[string]{Phase: phase, Content: "x"}
		}

		for _, phase := range []Phase{PhasePresenting, PhasePresented, PhaseDismissing} {
			_, ok := at(phase).Present("y", time.Second)
			assert.False(t, ok, "present from %s", phase)
		}
		for _, phase := range []Phase{PhaseIdle, PhasePresented, PhaseDismissing} {
			_, ok := at(phase).FinishPresenting()
			assert.False(t, ok, "finishPresenting from %s", phase)
		}
		for _, phase := range []Phase{PhaseIdle, PhasePresenting, PhaseDismissing} {
			_, ok := at(phase).Dismiss("y", time.Second)
			assert.False(t, ok, "dismiss from %s", phase)
		}
		for _, phase := range []Phase{PhaseIdle, PhasePresenting, PhasePresented} {
			_, ok := at(phase).FinishDismissing()
			assert.False(t, ok, "finishDismissing from %s", phase)
		}
	})

	t.Run("guarded no-op leaves the receiver unchanged", func(t *testing.T) {
		p := Presentation[string]{Phase: PhasePresented, Content: "keep"}
		q, ok := p.Present("replace", time.Second)
		assert.False(t, ok)
		assert.Equal(t, p, q)
	})

	t.Run("phase strings", func(t *testing.T) {
		assert.Equal(t, "idle", PhaseIdle.String())
		assert.Equal(t, "presenting", PhasePresenting.String())
		assert.Equal(t, "presented", PhasePresented.String())
		assert.Equal(t, "dismissing", PhaseDismissing.String())
		assert.Equal(t, "unknown", Phase(42).String())
	})
}

// overlayState drives the presentation machine through a real store so the
// completion/timeout timer pairs race under a deterministic clock.
type overlayState struct {
	Overlay Presentation[string]
}

const overlayDuration = 200 * time.Millisecond

func overlayReducer(s overlayState, a string, _ struct{}) (overlayState, Effect[string]) {
	switch a {
	case "open":
		next, ok := s.Overlay.Present("banner", overlayDuration)
		if !ok {
			return s, None[string]()
		}
		s.Overlay = next
		return s, PresentTimers(overlayDuration, "openDone", "openTimeout")

	case "openDone", "openTimeout":
		next, ok := s.Overlay.FinishPresenting()
		if !ok {
			return s, None[string]()
		}
		s.Overlay = next
		return s, None[string]()

	case "close":
		next, ok := s.Overlay.Dismiss(s.Overlay.Content, overlayDuration)
		if !ok {
			return s, None[string]()
		}
		s.Overlay = next
		return s, DismissTimers(overlayDuration, "closeDone", "closeTimeout")

	case "closeDone", "closeTimeout":
		next, ok := s.Overlay.FinishDismissing()
		if !ok {
			return s, None[string]()
		}
		s.Overlay = next
		return s, None[string]()
	}
	return s, None[string]()
}

func TestPresentationTimers(t *testing.T) {
	t.Run("completion wins and the late timeout no-ops", func(t *testing.T) {
		clock := NewManualClock()
		store := New(overlayReducer, overlayState{}, struct{}{}).WithClock(clock)
		defer store.Destroy()

		store.Dispatch("open")
		assert.Equal(t, PhasePresenting, store.State().Overlay.Phase)

		clock.Advance(overlayDuration)
		assert.Equal(t, PhasePresented, store.State().Overlay.Phase)

		// timeout fires at 2x and must change nothing
		clock.Advance(overlayDuration)
		assert.Equal(t, PhasePresented, store.State().Overlay.Phase)
		assert.Equal(t, "banner", store.State().Overlay.Content)
	})

	t.Run("timeout advances a stuck entrance", func(t *testing.T) {
		clock := NewManualClock()

		// drop the completion event to simulate a rendering layer that never
		// reports back
		stuck := func(s overlayState, a string, d struct{}) (overlayState, Effect[string]) {
			if a == "openDone" {
				return s, None[string]()
			}
			return overlayReducer(s, a, d)
		}

		store := New(stuck, overlayState{}, struct{}{}).WithClock(clock)
		defer store.Destroy()

		store.Dispatch("open")

		clock.Advance(overlayDuration)
		assert.Equal(t, PhasePresenting, store.State().Overlay.Phase)

		clock.Advance(overlayDuration)
		assert.Equal(t, PhasePresented, store.State().Overlay.Phase)
	})

	t.Run("exit timeout uses the larger multiplier", func(t *testing.T) {
		clock := NewManualClock()

		stuck := func(s overlayState, a string, d struct{}) (overlayState, Effect[string]) {
			if a == "closeDone" {
				return s, None[string]()
			}
			return overlayReducer(s, a, d)
		}

		store := New(stuck, overlayState{}, struct{}{}).WithClock(clock)
		defer store.Destroy()

		store.Dispatch("open")
		clock.Advance(2 * overlayDuration)
		store.Dispatch("close")
		assert.Equal(t, PhaseDismissing, store.State().Overlay.Phase)

		clock.Advance(2 * overlayDuration)
		assert.Equal(t, PhaseDismissing, store.State().Overlay.Phase)

		clock.Advance(overlayDuration)
		assert.Equal(t, PhaseIdle, store.State().Overlay.Phase)
	})

	t.Run("full round trip through a store", func(t *testing.T) {
		clock := NewManualClock()
		store := New(overlayReducer, overlayState{}, struct{}{}).WithClock(clock)
		defer store.Destroy()

		store.Dispatch("open")
		clock.Advance(2 * overlayDuration)
		store.Dispatch("close")

		// content survives for exit rendering
		assert.Equal(t, "banner", store.State().Overlay.Content)

		clock.Advance(3 * overlayDuration)
		assert.Equal(t, overlayState{}, store.State())
	})
}
