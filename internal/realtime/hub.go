package realtime

import (
	"sync"

	"go.uber.org/zap"
)

const subscriptionBuffer = 64

// Hub fans events out to in-process subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs: make(map[*Subscription]struct{}),
		log:  log,
	}
}

// Subscription receives the events of the tables it was opened for.
type Subscription struct {
	hub    *Hub
	tables map[string]bool
	ch     chan Event
	once   sync.Once
}

// Subscribe opens a subscription on tables. No tables means every table.
func (h *Hub) Subscribe(tables ...string) *Subscription {
	s := &Subscription{
		hub: h,
		ch:  make(chan Event, subscriptionBuffer),
	}
	if len(tables) > 0 {
		s.tables = make(map[string]bool, len(tables))
		for _, t := range tables {
			s.tables[t] = true
		}
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Publish delivers e to every matching subscriber. A subscriber whose buffer
// is full misses the event.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if !s.wants(e.Table) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			h.log.Warn("slow subscriber, event dropped",
				zap.String("table", e.Table),
				zap.String("op", string(e.Op)),
			)
		}
	}
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *Subscription) C() <-chan Event { return s.ch }

func (s *Subscription) wants(table string) bool {
	return s.tables == nil || s.tables[table]
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}
