package reflow

import "fmt"

// IfLet embeds a child reducer under an optional parent field. The core
// reducer runs first; when the field is absent the child action is ignored
// (running a child against missing state is disallowed), otherwise the child
// runs against the field, the result is written back, and every action the
// child's effect would dispatch is rewrapped through wrap before re-entering
// the parent's action space. The core's and the child's effects are batched
// so neither is dropped.
//
// Lenses replace key paths: get returns a pointer to the child state or nil
// for absent, put writes it back, match recognizes parent actions addressed
// to the child, wrap lifts child actions into parent actions.
func IfLet[PS, PA, CS, CA, D any](
	core Reducer[PS, PA, D],
	get func(PS) *CS,
	put func(PS, *CS) PS,
	match func(PA) (CA, bool),
	wrap func(CA) PA,
	child Reducer[CS, CA, D],
) Reducer[PS, PA, D] {
	if core == nil {
		panic("reflow: nil core reducer")
	}
	if child == nil {
		panic("reflow: nil child reducer")
	}

	return func(state PS, action PA, deps D) (PS, Effect[PA]) {
		next, coreEffect := core(state, action, deps)

		childAction, ok := match(action)
		if !ok {
			return next, coreEffect
		}

		slice := get(next)
		if slice == nil {
			return next, coreEffect
		}

		childNext, childEffect := child(*slice, childAction, deps)
		next = put(next, &childNext)

		return next, Batch(coreEffect, MapEffect(childEffect, wrap))
	}
}

// Binding is one field registration for Integrate, erased over the child's
// state and action types.
type Binding[PS, PA, D any] struct {
	field string
	apply func(Reducer[PS, PA, D]) Reducer[PS, PA, D]
}

// Bind names a parent field and its IfLet lenses. The name participates in
// Integrate's duplicate-registration check. A nil child panics immediately.
func Bind[PS, PA, CS, CA, D any](
	field string,
	get func(PS) *CS,
	put func(PS, *CS) PS,
	match func(PA) (CA, bool),
	wrap func(CA) PA,
	child Reducer[CS, CA, D],
) Binding[PS, PA, D] {
	if child == nil {
		panic(fmt.Sprintf("reflow: nil child reducer for field %q", field))
	}

	return Binding[PS, PA, D]{
		field: field,
		apply: func(core Reducer[PS, PA, D]) Reducer[PS, PA, D] {
			return IfLet(core, get, put, match, wrap, child)
		},
	}
}

// Integration accumulates field bindings around a core reducer.
type Integration[PS, PA, D any] struct {
	core   Reducer[PS, PA, D]
	order  []Binding[PS, PA, D]
	fields map[string]struct{}
}

// Integrate starts a builder around the core reducer.
func Integrate[PS, PA, D any](core Reducer[PS, PA, D]) *Integration[PS, PA, D] {
	if core == nil {
		panic("reflow: nil core reducer")
	}

	return &Integration[PS, PA, D]{
		core:   core,
		fields: make(map[string]struct{}),
	}
}

// With registers a binding. Registering the same field twice is a
// construction error and panics immediately, before first dispatch.
func (b *Integration[PS, PA, D]) With(binding Binding[PS, PA, D]) *Integration[PS, PA, D] {
	if _, dup := b.fields[binding.field]; dup {
		panic(fmt.Sprintf("reflow: field %q registered twice", binding.field))
	}

	b.fields[binding.field] = struct{}{}
	b.order = append(b.order, binding)
	return b
}

// Build folds the registrations left-to-right around the core reducer.
func (b *Integration[PS, PA, D]) Build() Reducer[PS, PA, D] {
	reducer := b.core
	for _, binding := range b.order {
		reducer = binding.apply(reducer)
	}
	return reducer
}
