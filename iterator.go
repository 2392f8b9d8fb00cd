package ringbuffer

import "iter"

// Iterator walks a ring oldest to newest. The number of elements it yields is
// fixed when it is created; mutating the ring afterwards invalidates it.
type Iterator[T any] struct {
	r      *RingBuffer[T]
	cursor int
	size   int
	mods   uint64
}

// Iterator starts a new pass over the ring's current contents.
func (r *RingBuffer[T]) Iterator() *Iterator[T] {
	return &Iterator[T]{r: r, size: r.size, mods: r.mods}
}

func (it *Iterator[T]) HasNext() bool {
	return it.cursor < it.size
}

// Next returns the next element. It fails with ErrIterationExhausted past the
// end, even if the ring has changed since, and otherwise with
// ErrConcurrentModification if the ring changed since the iterator was
// created.
func (it *Iterator[T]) Next() (T, error) {
	var zero T
	if !it.HasNext() {
		return zero, ErrIterationExhausted
	}
	if it.r.mods != it.mods {
		return zero, ErrConcurrentModification
	}

	x := it.r.buf[it.r.slot(it.cursor)]
	it.cursor++
	return x, nil
}

// All returns a sequence over the ring's elements, oldest first. Each call to
// the sequence starts a fresh pass. A pass stops early if the ring is mutated
// while it runs.
func (r *RingBuffer[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		it := r.Iterator()
		for it.HasNext() {
			x, err := it.Next()
			if err != nil || !yield(x) {
				return
			}
		}
	}
}
