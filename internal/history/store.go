package history

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/DeterminateSystems/ringbuffer"
)

type Config struct {
	// Depth is the number of events kept per key.
	Depth int
	// RecentDepth is the number of events kept across all keys.
	RecentDepth int
	// Registerer, when set, receives metrics for the cross-key log.
	Registerer prometheus.Registerer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Store holds one Log per key, created on first use.
type Store struct {
	mu   sync.RWMutex
	logs map[string]*Log

	recent *ringbuffer.Synchronized[Event]
	depth  int

	broker *Broker
	logger *zap.Logger
	now    func() time.Time
}

func NewStore(cfg Config, broker *Broker, logger *zap.Logger) (*Store, error) {
	if cfg.Depth <= 0 {
		return nil, errors.Wrapf(ringbuffer.ErrInvalidCapacity, "history depth %d", cfg.Depth)
	}
	if cfg.RecentDepth <= 0 {
		cfg.RecentDepth = cfg.Depth
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	recent, err := ringbuffer.NewSynchronized[Event](cfg.RecentDepth,
		ringbuffer.WithMetrics[Event](cfg.Registerer, "recent"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating recent log")
	}

	return &Store{
		logs:   make(map[string]*Log),
		recent: recent,
		depth:  cfg.Depth,
		broker: broker,
		logger: logger.Named("history"),
		now:    cfg.Now,
	}, nil
}

// Record appends an event to key's log, creating the log if needed.
func (s *Store) Record(ctx context.Context, key, kind, detail string) (Event, error) {
	l, err := s.getOrCreate(key)
	if err != nil {
		return Event{}, err
	}

	ev, err := l.Record(ctx, kind, detail)
	if err != nil {
		return ev, err
	}
	if err := s.recent.Push(ev); err != nil {
		return ev, err
	}
	return ev, nil
}

func (s *Store) getOrCreate(key string) (*Log, error) {
	s.mu.RLock()
	l := s.logs[key]
	s.mu.RUnlock()
	if l != nil {
		return l, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.logs[key]; l != nil {
		return l, nil
	}

	l, err := newLog(key, s.depth, s.broker, s.logger, s.now)
	if err != nil {
		return nil, err
	}
	s.logs[key] = l
	s.logger.Debug("new log", zap.String("key", key), zap.Int("depth", s.depth))
	return l, nil
}

func (s *Store) Get(key string) (*Log, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.logs[key]
	return l, ok
}

// Keys returns every known key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.logs))
	for k := range s.logs {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Recent returns the newest events across all keys, oldest first.
func (s *Store) Recent() []Event {
	return s.recent.ToSlice()
}

// Drain empties key's log and returns what it held. ok is false for an
// unknown key.
func (s *Store) Drain(ctx context.Context, key string) (events []Event, ok bool, err error) {
	l, ok := s.Get(key)
	if !ok {
		return nil, false, nil
	}
	events, err = l.Drain(ctx)
	return events, true, err
}

// Reset clears key's log. ok is false for an unknown key.
func (s *Store) Reset(ctx context.Context, key string) (ok bool, err error) {
	l, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	return true, l.Reset(ctx)
}

func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.logs)
}
