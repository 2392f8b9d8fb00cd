// Package history keeps a bounded log of recent events per key and fans
// new events out to live subscribers.
package history

import "time"

// Kinds published by the store itself rather than recorded by callers.
const (
	KindState = "state"
	KindReset = "reset"
)

type Event struct {
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

func newEvent(now time.Time, key, kind, detail string) Event {
	return Event{
		Key:       key,
		Kind:      kind,
		Detail:    detail,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
