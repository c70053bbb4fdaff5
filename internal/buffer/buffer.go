package buffer

// DefaultCapacity is the number of visible log lines kept per session.
const DefaultCapacity = 1000

// Bounded is a fixed-capacity FIFO. Appending past capacity evicts the
// oldest entries; it never rejects input.
type Bounded[T any] struct {
	items []T
	head  int
	size  int
}

func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Bounded[T]{items: make([]T, capacity)}
}

func (b *Bounded[T]) Cap() int { return len(b.items) }

func (b *Bounded[T]) Len() int { return b.size }

// Append adds v at the tail and reports how many entries were evicted.
func (b *Bounded[T]) Append(v T) int {
	c := len(b.items)
	if b.size < c {
		b.items[(b.head+b.size)%c] = v
		b.size++
		return 0
	}

	b.items[b.head] = v
	b.head = (b.head + 1) % c
	return 1
}

// AppendAll appends vs in order and reports the total evictions.
func (b *Bounded[T]) AppendAll(vs []T) int {
	evicted := 0
	for _, v := range vs {
		evicted += b.Append(v)
	}
	return evicted
}

// Items returns a copy of the contents, oldest first.
func (b *Bounded[T]) Items() []T {
	out := make([]T, b.size)
	c := len(b.items)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%c]
	}
	return out
}

func (b *Bounded[T]) Clear() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}

// Queue is an unbounded FIFO used to hold the backlog received while a
// stream is paused.
type Queue[T any] struct {
	items []T
}

func (q *Queue[T]) Append(v T) { q.items = append(q.items, v) }

func (q *Queue[T]) Len() int { return len(q.items) }

// Drain returns every entry in arrival order and empties the queue.
func (q *Queue[T]) Drain() []T {
	out := q.items
	q.items = nil
	return out
}
