package history

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/DeterminateSystems/ringbuffer"
)

// Log is the recent history of a single key. Its fill state is mirrored in a
// state machine so that subscribers see empty/partial/full transitions.
type Log struct {
	Key string

	// mu orders writers so lifecycle transitions follow ring mutations.
	mu        sync.Mutex
	events    *ringbuffer.Synchronized[Event]
	lifecycle *fsm.FSM
	evictions atomic.Uint64

	broker *Broker
	logger *zap.Logger
	now    func() time.Time
}

func newLog(key string, depth int, broker *Broker, logger *zap.Logger, now func() time.Time) (*Log, error) {
	l := &Log{
		Key:    key,
		broker: broker,
		logger: logger.With(zap.String("key", key)),
		now:    now,
	}

	events, err := ringbuffer.NewSynchronized[Event](depth,
		ringbuffer.WithEvictCallback(func(Event) {
			l.evictions.Add(1)
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "creating log for %q", key)
	}
	l.events = events

	empty, partial, full := ringbuffer.Empty.String(), ringbuffer.Partial.String(), ringbuffer.Full.String()
	l.lifecycle = fsm.NewFSM(
		empty,
		fsm.Events{
			{Name: "to_" + partial, Src: []string{empty, full}, Dst: partial},
			{Name: "to_" + full, Src: []string{empty, partial}, Dst: full},
			{Name: "to_" + empty, Src: []string{partial, full}, Dst: empty},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.logger.Debug("log state changed", zap.String("from", e.Src), zap.String("to", e.Dst))
				l.broker.Publish(newEvent(l.now(), l.Key, KindState, e.Dst))
			},
		},
	)

	return l, nil
}

// Record appends an event, evicting the oldest one when the log is full.
func (l *Log) Record(ctx context.Context, kind, detail string) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := newEvent(l.now(), l.Key, kind, detail)

	var (
		state ringbuffer.State
		err   error
	)
	l.events.Do(func(r *ringbuffer.RingBuffer[Event]) {
		if err = r.Push(ev); err == nil {
			state = r.State()
		}
	})
	if err != nil {
		return Event{}, err
	}

	l.broker.Publish(ev)

	// The event is stored; a lifecycle error only affects what subscribers see.
	if err := l.transition(ctx, state); err != nil {
		l.logger.Warn("lifecycle out of step", zap.Error(err))
	}
	return ev, nil
}

// Drain removes and returns every event, oldest first.
func (l *Log) Drain(ctx context.Context) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.events.Drain()
	return out, l.transition(ctx, ringbuffer.Empty)
}

// Reset discards every event.
func (l *Log) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events.Clear()
	l.broker.Publish(newEvent(l.now(), l.Key, KindReset, ""))
	return l.transition(ctx, ringbuffer.Empty)
}

// Events returns a snapshot, oldest first.
func (l *Log) Events() []Event {
	return l.events.ToSlice()
}

func (l *Log) Len() int {
	return l.events.Len()
}

func (l *Log) State() string {
	return l.lifecycle.Current()
}

// Evictions counts events pushed out by newer ones.
func (l *Log) Evictions() uint64 {
	return l.evictions.Load()
}

func (l *Log) transition(ctx context.Context, state ringbuffer.State) error {
	if l.lifecycle.Is(state.String()) {
		return nil
	}
	// A canceled context leaves looplab/fsm stuck mid-transition.
	if err := l.lifecycle.Event(context.WithoutCancel(ctx), "to_"+state.String()); err != nil {
		return errors.Wrapf(err, "log %q: %s -> %s", l.Key, l.lifecycle.Current(), state)
	}
	return nil
}

type logJSON struct {
	Key       string  `json:"key"`
	State     string  `json:"state"`
	Evictions uint64  `json:"evictions"`
	Events    []Event `json:"events"`
}

func (l *Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(logJSON{
		Key:       l.Key,
		State:     l.State(),
		Evictions: l.Evictions(),
		Events:    l.Events(),
	})
}
