package ringbuffer

import "github.com/prometheus/client_golang/prometheus"

// Option configures a RingBuffer at construction.
type Option[T any] func(*options[T])

type options[T any] struct {
	onEvict    func(T)
	registerer prometheus.Registerer
	name       string
}

// WithEvictCallback registers fn to be called with every element that Add
// overwrites. It runs after the ring has been updated.
func WithEvictCallback[T any](fn func(T)) Option[T] {
	return func(o *options[T]) {
		o.onEvict = fn
	}
}

// WithMetrics exports ring activity to reg, labelled buffer=name.
// A nil registerer or an empty name disables metrics.
func WithMetrics[T any](reg prometheus.Registerer, name string) Option[T] {
	return func(o *options[T]) {
		if reg != nil && name != "" {
			o.registerer = reg
			o.name = name
		}
	}
}

func applyOptions[T any](opts ...Option[T]) *options[T] {
	o := &options[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
