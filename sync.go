package ringbuffer

import "sync"

// Synchronized guards a RingBuffer with a read/write mutex.
type Synchronized[T any] struct {
	mu sync.RWMutex
	r  *RingBuffer[T]
}

func NewSynchronized[T any](capacity int, opts ...Option[T]) (*Synchronized[T], error) {
	r, err := New[T](capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &Synchronized[T]{r: r}, nil
}

func (s *Synchronized[T]) Add(x T) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Add(x)
}

func (s *Synchronized[T]) Push(x T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Push(x)
}

func (s *Synchronized[T]) Peek() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.Peek()
}

func (s *Synchronized[T]) Poll() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Poll()
}

// Drain polls every element under a single lock, oldest first.
func (s *Synchronized[T]) Drain() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, s.r.Len())
	for {
		x, ok := s.r.Poll()
		if !ok {
			return out
		}
		out = append(out, x)
	}
}

func (s *Synchronized[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Clear()
}

func (s *Synchronized[T]) Cap() int {
	return s.r.Cap()
}

func (s *Synchronized[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.Len()
}

func (s *Synchronized[T]) IsEmpty() bool {
	return s.Len() == 0
}

func (s *Synchronized[T]) IsFull() bool {
	return s.Len() == s.r.Cap()
}

func (s *Synchronized[T]) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.State()
}

func (s *Synchronized[T]) ToSlice() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.ToSlice()
}

// Do runs fn with exclusive access to the underlying ring. fn must not keep
// the ring or an iterator over it after returning.
func (s *Synchronized[T]) Do(fn func(r *RingBuffer[T])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.r)
}

func (s *Synchronized[T]) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r.MarshalJSON()
}
