package ring

// Buffer is a fixed-capacity ring. Pushing past capacity overwrites the
// oldest element. The zero value is unusable; use New.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

func (b *Buffer[T]) Push(v T) {
	if b.size < len(b.items) {
		b.items[(b.head+b.size)%len(b.items)] = v
		b.size++
		return
	}

	b.items[b.head] = v
	b.head = (b.head + 1) % len(b.items)
}

func (b *Buffer[T]) Len() int {
	return b.size
}

func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Snapshot returns the buffered elements oldest-first.
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}
