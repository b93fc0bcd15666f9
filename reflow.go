// Package reflow is a unidirectional state/effect runtime: pure reducers
// compute the next state and a declarative side-effect description, a store
// executes both, and destination composition routes actions into optional
// case-tagged child states with a guarded presentation lifecycle on top.
//
// Reducers are synchronous, total, and free of side effects. All asynchronous
// work lives in Effect values interpreted by the store, and every completion
// re-enters through Dispatch, so reducers can be reasoned about as strictly
// sequential.
package reflow

// Reducer computes the next state and an effect from the current state, an
// action, and injected dependencies. Reducers must not mutate state in place
// and have no error channel; failures are encoded as state.
type Reducer[S, A, D any] func(state S, action A, deps D) (S, Effect[A])

// Dispatch feeds an action back into the runtime. Effect bodies and
// subscription setups receive one.
type Dispatch[A any] func(A)

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}

	return v.(T)
}
