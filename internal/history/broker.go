package history

import (
	"sync"
)

// Broker fans events out to subscribers. A subscriber that falls behind
// misses events rather than stalling the publisher.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan Event]struct{}
	backlog int
}

func NewBroker(backlog int) *Broker {
	if backlog <= 0 {
		backlog = 8
	}
	return &Broker{clients: make(map[chan Event]struct{}), backlog: backlog}
}

func (b *Broker) Subscribe() (ch chan Event, unsubscribe func()) {
	ch = make(chan Event, b.backlog)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- ev:
		default:
			// client too slow; drop the event for this client
		}
	}
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
