package reflow

import (
	"fmt"
	"reflect"
	"strings"
)

// Destination is an optional, mutually-exclusive nested state: exactly one
// case is active, tagged by name. A nil *Destination means no destination.
// Switching the active case discards the prior child state entirely.
type Destination struct {
	Case  string
	State any
}

// PresentationAction is the wire wrapper distinguishing a child action
// addressed to the presented destination from a generic dismissal request.
type PresentationAction struct {
	Dismiss bool
	Action  any
}

// DestinationAction addresses one destination case.
type DestinationAction struct {
	Case   string
	Action PresentationAction
}

// Presented wraps a child action for the named case.
func Presented(caseName string, action any) DestinationAction {
	return DestinationAction{Case: caseName, Action: PresentationAction{Action: action}}
}

// Dismissal is a dismissal request for the named case.
func Dismissal(caseName string) DestinationAction {
	return DestinationAction{Case: caseName, Action: PresentationAction{Dismiss: true}}
}

// CaseReducer is a child reducer erased over its state and action types so
// heterogeneous cases can share one routing table.
type CaseReducer[D any] func(state, action any, deps D) (any, Effect[any])

// Case adapts a typed child reducer into a CaseReducer. A nil reducer is a
// programmer error and panics at construction.
func Case[S, A, D any](r Reducer[S, A, D]) CaseReducer[D] {
	if r == nil {
		panic("reflow: nil case reducer")
	}

	return func(state, action any, deps D) (any, Effect[any]) {
		next, effect := r(as[S](state), as[A](action), deps)
		return next, MapEffect(effect, func(a A) any { return a })
	}
}

// Destinations routes destination actions to the child reducer registered
// under the matching case tag.
type Destinations[D any] struct {
	cases map[string]CaseReducer[D]
}

// NewDestinations builds a router from case tag to child reducer. Nil
// entries panic at construction.
func NewDestinations[D any](cases map[string]CaseReducer[D]) *Destinations[D] {
	for name, r := range cases {
		if r == nil {
			panic(fmt.Sprintf("reflow: nil case reducer for %q", name))
		}
	}

	table := make(map[string]CaseReducer[D], len(cases))
	for name, r := range cases {
		table[name] = r
	}
	return &Destinations[D]{cases: table}
}

// Initial builds the destination value for a case.
func (ds *Destinations[D]) Initial(caseName string, childState any) *Destination {
	return &Destination{Case: caseName, State: childState}
}

// Reduce routes one destination action. Unknown cases, absent or mismatched
// destinations (stale actions), and bare dismissals leave the state
// unchanged; dismissal is the owning parent's responsibility to observe and
// apply. Otherwise the matched child runs against its slice, the result is
// rewrapped under the same case, and the child's effect is lifted unchanged
// into the destination action space.
func (ds *Destinations[D]) Reduce(dest *Destination, act DestinationAction, deps D) (*Destination, Effect[DestinationAction]) {
	child, ok := ds.cases[act.Case]
	if !ok {
		return dest, None[DestinationAction]()
	}
	if dest == nil || dest.Case != act.Case {
		return dest, None[DestinationAction]()
	}
	if act.Action.Dismiss {
		return dest, None[DestinationAction]()
	}

	caseName := act.Case
	next, effect := child(dest.State, act.Action.Action, deps)

	return &Destination{Case: caseName, State: next},
		MapEffect(effect, func(a any) DestinationAction { return Presented(caseName, a) })
}

// Extract returns the child state when the destination holds the named case.
// Total: absent destinations, mismatched cases, and mismatched state types
// all report false.
func Extract[S any](dest *Destination, caseName string) (S, bool) {
	var zero S
	if dest == nil || dest.Case != caseName {
		return zero, false
	}
	state, ok := dest.State.(S)
	if !ok {
		return zero, false
	}
	return state, true
}

// Is matches an action against a case path: a bare case tag ("addToCart")
// matches any action addressed to the case, a dotted path
// ("addToCart.confirmTapped") additionally matches the child action's name,
// and "case.dismiss" matches the dismissal request.
func Is(act DestinationAction, path string) bool {
	caseName, actionPart := splitCasePath(path)
	if act.Case != caseName {
		return false
	}
	if actionPart == "" {
		return true
	}
	if actionPart == "dismiss" {
		return act.Action.Dismiss
	}
	return !act.Action.Dismiss && actionName(act.Action.Action) == actionPart
}

// MatchCase is the atomic match-and-extract: when act addresses the given
// case path and the destination currently holds that case, it returns the
// typed child state and child action in a single step, so the state checked
// can never disagree with the action matched.
func MatchCase[S, A any](dest *Destination, act DestinationAction, path string) (S, A, bool) {
	var (
		zeroS S
		zeroA A
	)

	caseName, actionPart := splitCasePath(path)
	if dest == nil || dest.Case != caseName || act.Case != caseName || act.Action.Dismiss {
		return zeroS, zeroA, false
	}

	child, ok := act.Action.Action.(A)
	if !ok {
		return zeroS, zeroA, false
	}
	if actionPart != "" && actionName(child) != actionPart {
		return zeroS, zeroA, false
	}

	state, ok := dest.State.(S)
	if !ok {
		return zeroS, zeroA, false
	}
	return state, child, true
}

// CaseClause pairs a case path with a handler for Match.
type CaseClause struct {
	Path   string
	Handle func(state, action any)
}

// Match runs the first clause whose path matches act against the current
// destination, passing the child state and action (nil for dismissals).
// It reports whether any clause ran.
func Match(dest *Destination, act DestinationAction, clauses ...CaseClause) bool {
	for _, clause := range clauses {
		caseName, _ := splitCasePath(clause.Path)
		if dest == nil || dest.Case != caseName {
			continue
		}
		if !Is(act, clause.Path) {
			continue
		}
		if clause.Handle != nil {
			if act.Action.Dismiss {
				clause.Handle(dest.State, nil)
			} else {
				clause.Handle(dest.State, act.Action.Action)
			}
		}
		return true
	}
	return false
}

func splitCasePath(path string) (caseName, actionPart string) {
	caseName, actionPart, _ = strings.Cut(path, ".")
	return caseName, actionPart
}

// actionName names an action for matching and tracing: ActionName() when
// implemented, the reflected type name otherwise.
func actionName(a any) string {
	if named, ok := a.(interface{ ActionName() string }); ok {
		return named.ActionName()
	}

	t := reflect.TypeOf(a)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
