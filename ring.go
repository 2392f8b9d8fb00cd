// Package ringbuffer implements a fixed-capacity FIFO queue that overwrites
// its oldest element when a new one arrives at full capacity.
//
// A RingBuffer is not safe for concurrent use. Wrap it in a Synchronized
// when several goroutines share one.
package ringbuffer

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// RingBuffer is a fixed-size FIFO queue with overwrite-on-full semantics.
type RingBuffer[T any] struct {
	buf  []T
	head int
	size int

	// mods changes on every mutation so iterators can detect them.
	mods uint64

	nilable bool
	onEvict func(T)
	metrics *ringMetrics
}

// New creates a ring with the given capacity.
func New[T any](capacity int, opts ...Option[T]) (*RingBuffer[T], error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrInvalidCapacity, "capacity %d", capacity)
	}

	o := applyOptions(opts...)
	r := &RingBuffer[T]{
		buf:     make([]T, capacity),
		nilable: isNilable(reflect.TypeFor[T]()),
		onEvict: o.onEvict,
	}

	if o.registerer != nil {
		m, err := newRingMetrics(o.registerer, o.name)
		if err != nil {
			return nil, errors.Wrapf(err, "registering metrics for %q", o.name)
		}
		m.observe(0, capacity)
		r.metrics = m
	}

	return r, nil
}

// MustNew is like New but panics on error.
func MustNew[T any](capacity int, opts ...Option[T]) *RingBuffer[T] {
	r, err := New[T](capacity, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *RingBuffer[T]) Cap() int {
	return len(r.buf)
}

func (r *RingBuffer[T]) Len() int {
	return r.size
}

func (r *RingBuffer[T]) IsEmpty() bool {
	return r.size == 0
}

func (r *RingBuffer[T]) IsFull() bool {
	return r.size == len(r.buf)
}

// State reports which of the three observable states the ring is in.
func (r *RingBuffer[T]) State() State {
	switch {
	case r.size == 0:
		return Empty
	case r.size == len(r.buf):
		return Full
	default:
		return Partial
	}
}

// Add appends x. If the ring is full, the oldest element is overwritten and
// returned with ok set. A nil x of a nil-able element type, or an interface
// holding such a nil, is rejected with ErrNilElement and leaves the ring
// untouched.
func (r *RingBuffer[T]) Add(x T) (evicted T, ok bool, err error) {
	if r.nilable && isNil(x) {
		return evicted, false, ErrNilElement
	}

	r.mods++

	if r.size < len(r.buf) {
		r.buf[r.slot(r.size)] = x
		r.size++
		if r.metrics != nil {
			r.metrics.recordAdd(r.size, len(r.buf))
		}
		return evicted, false, nil
	}

	// Overwrite oldest and advance head; size stays at capacity.
	evicted = r.buf[r.head]
	r.buf[r.head] = x
	r.head = r.slot(1)

	if r.metrics != nil {
		r.metrics.recordAdd(r.size, len(r.buf))
		r.metrics.recordEviction()
	}
	if r.onEvict != nil {
		r.onEvict(evicted)
	}

	return evicted, true, nil
}

// Push is Add without the evicted value.
func (r *RingBuffer[T]) Push(x T) error {
	_, _, err := r.Add(x)
	return err
}

// Peek returns the oldest element without removing it.
func (r *RingBuffer[T]) Peek() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.buf[r.head], true
}

// Poll removes and returns the oldest element.
func (r *RingBuffer[T]) Poll() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}

	r.mods++

	x := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = r.slot(1)
	r.size--

	if r.metrics != nil {
		r.metrics.recordPoll(r.size, len(r.buf))
	}

	return x, true
}

// Clear drops every element. Capacity is unchanged.
func (r *RingBuffer[T]) Clear() {
	if r.size == 0 {
		return
	}

	r.mods++

	var zero T
	for i := 0; i < r.size; i++ {
		r.buf[r.slot(i)] = zero
	}
	r.head = 0
	r.size = 0

	if r.metrics != nil {
		r.metrics.recordClear(len(r.buf))
	}
}

// At returns the i-th element in logical order [0..Len()-1],
// where 0 is the oldest and Len()-1 is the newest.
func (r *RingBuffer[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("ringbuffer: index out of range")
	}
	return r.buf[r.slot(i)]
}

// ToSlice returns the elements oldest first in a freshly allocated slice.
func (r *RingBuffer[T]) ToSlice() []T {
	out := make([]T, 0, r.size)

	// At most two contiguous runs: head..end and 0..wrap.
	end := r.head + r.size
	if end <= len(r.buf) {
		return append(out, r.buf[r.head:end]...)
	}
	out = append(out, r.buf[r.head:]...)
	return append(out, r.buf[:end-len(r.buf)]...)
}

func (r *RingBuffer[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToSlice())
}

// slot maps logical offset i from head to a physical index.
func (r *RingBuffer[T]) slot(i int) int {
	p := r.head + i
	if p >= len(r.buf) {
		p -= len(r.buf)
	}
	return p
}

func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
		reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
		return true
	}
	return false
}

// isNil also looks inside interface values, so a typed nil pointer stored
// in an any counts as missing.
func isNil[T any](x T) bool {
	v := reflect.ValueOf(&x).Elem()
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
		if !isNilable(v.Type()) {
			return false
		}
	}
	return v.IsNil()
}
