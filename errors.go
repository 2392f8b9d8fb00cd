package ringbuffer

import "github.com/pkg/errors"

var (
	// ErrInvalidCapacity is returned by New for a capacity <= 0.
	ErrInvalidCapacity = errors.New("ringbuffer: capacity must be > 0")

	// ErrNilElement is returned by Add when handed a nil pointer, interface,
	// map, slice, channel or func.
	ErrNilElement = errors.New("ringbuffer: nil element")

	// ErrIterationExhausted is returned by Iterator.Next after the last element.
	ErrIterationExhausted = errors.New("ringbuffer: no more elements")

	// ErrConcurrentModification is returned by Iterator.Next once the ring
	// has been mutated after the iterator was created.
	ErrConcurrentModification = errors.New("ringbuffer: modified during iteration")
)
