package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event is one row change on a tracked table. Record carries the written
// row (or the update set) when it could be encoded.
type Event struct {
	Table  string          `json:"table"`
	Op     Op              `json:"type"`
	Record json.RawMessage `json:"record,omitempty"`
	At     time.Time       `json:"commit_timestamp"`

	// Origin is the instance that produced the event, empty for external writers.
	Origin string `json:"origin,omitempty"`
}

// Publisher accepts events for fan-out.
type Publisher interface {
	Publish(Event)
}

type heldKey struct{}

// Held collects the events produced while a transaction is open so they are
// only published once it has finished.
type Held struct {
	mu     sync.Mutex
	events []Event
	pub    Publisher
}

// Hold returns a context whose writes are collected instead of published.
// A context that already holds keeps its collector.
func Hold(ctx context.Context) (context.Context, *Held) {
	if h, ok := ctx.Value(heldKey{}).(*Held); ok {
		return ctx, h
	}
	h := &Held{}
	return context.WithValue(ctx, heldKey{}, h), h
}

func heldFrom(ctx context.Context) *Held {
	if ctx == nil {
		return nil
	}
	h, _ := ctx.Value(heldKey{}).(*Held)
	return h
}

func (h *Held) add(pub Publisher, e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pub = pub
	h.events = append(h.events, e)
}

// Flush publishes the collected events in order. Events of a rolled back
// transaction are published too; listeners only refetch.
func (h *Held) Flush() {
	h.mu.Lock()
	events, pub := h.events, h.pub
	h.events = nil
	h.mu.Unlock()
	if pub == nil {
		return
	}
	for _, e := range events {
		pub.Publish(e)
	}
}
