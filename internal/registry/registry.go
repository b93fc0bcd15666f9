package registry

// Kind identifies which scheduling discipline owns a pending entry.
type Kind int

const (
	InFlight Kind = iota
	Debounce
	Throttle
	Subscription
)

func (k Kind) String() string {
	switch k {
	case InFlight:
		return "inflight"
	case Debounce:
		return "debounce"
	case Throttle:
		return "throttle"
	case Subscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// Entry is one pending unit of work keyed by a caller-chosen identity.
// Cancel aborts in-flight work, stops a timer, or tears down a subscription.
type Entry struct {
	Kind   Kind
	Cancel func()
}

// Table maps opaque identities to their single pending entry.
// Invariant: at most one entry per id, across all kinds. The table does no
// locking; the owning store serializes access.
type Table struct {
	entries map[string]*slot
	nextTok uint64
}

type slot struct {
	entry Entry
	token uint64
}

func NewTable() *Table {
	return &Table{entries: make(map[string]*slot)}
}

// Supersede cancels and removes any existing entry under id.
func (t *Table) Supersede(id string) {
	s, ok := t.entries[id]
	if !ok {
		return
	}
	delete(t.entries, id)
	if s.entry.Cancel != nil {
		s.entry.Cancel()
	}
}

// Put registers an entry under id and returns a token identifying this
// registration. Any prior entry must have been superseded by the caller.
func (t *Table) Put(id string, e Entry) uint64 {
	t.nextTok++
	t.entries[id] = &slot{entry: e, token: t.nextTok}
	return t.nextTok
}

// Release removes the entry under id without cancelling it, but only if it
// still belongs to the given registration. Completed work uses this so a
// successor registered under the same id is never evicted by a stale finisher.
func (t *Table) Release(id string, token uint64) bool {
	s, ok := t.entries[id]
	if !ok || s.token != token {
		return false
	}
	delete(t.entries, id)
	return true
}

// Get reports the entry currently registered under id.
func (t *Table) Get(id string) (Entry, bool) {
	s, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return s.entry, true
}

func (t *Table) Len() int {
	return len(t.entries)
}

// Drain cancels and removes every entry, visiting them through fn so the
// caller can isolate per-entry panics. The table is empty afterwards.
func (t *Table) Drain(fn func(id string, e Entry)) {
	entries := t.entries
	t.entries = make(map[string]*slot)

	for id, s := range entries {
		fn(id, s.entry)
	}
}
