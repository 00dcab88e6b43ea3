// Package view keeps server-side snapshots of dashboard pages fresh by
// refetching them whenever one of their tables changes.
package view

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/canchallena/panel/internal/realtime"
)

// Fetcher loads a full snapshot of a view.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Live is an active view. It refetches on every change of its tables;
// fetches run one at a time so the last one started is the one kept.
type Live[T any] struct {
	name  string
	fetch Fetcher[T]
	sub   *realtime.Subscription
	log   *zap.Logger

	mu      sync.RWMutex
	snap    T
	version uint64
	lastErr error

	changed chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Activate subscribes to tables, runs the first fetch and starts the refetch
// loop. The loop stops when ctx ends or Close is called.
func Activate[T any](ctx context.Context, hub *realtime.Hub, name string, fetch Fetcher[T], log *zap.Logger, tables ...string) (*Live[T], error) {
	if log == nil {
		log = zap.NewNop()
	}
	sub := hub.Subscribe(tables...)

	snap, err := fetch(ctx)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &Live[T]{
		name:    name,
		fetch:   fetch,
		sub:     sub,
		log:     log.With(zap.String("view", name)),
		snap:    snap,
		version: 1,
		changed: make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go l.loop(ctx)
	return l, nil
}

func (l *Live[T]) loop(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-l.sub.C():
			if !ok {
				return
			}
			l.drain()
			l.Refresh(ctx)
		}
	}
}

// drain discards events already queued; one refetch covers them all.
func (l *Live[T]) drain() {
	for {
		select {
		case _, ok := <-l.sub.C():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Refresh refetches the snapshot. A failed fetch keeps the previous
// snapshot and is reported by Err.
func (l *Live[T]) Refresh(ctx context.Context) {
	snap, err := l.fetch(ctx)
	l.mu.Lock()
	if err != nil {
		l.lastErr = err
		l.mu.Unlock()
		if ctx.Err() == nil {
			l.log.Warn("refetch failed", zap.Error(err))
		}
		return
	}
	l.snap = snap
	l.lastErr = nil
	l.version++
	l.mu.Unlock()
	l.notify()
}

// Snapshot returns the current value and its version.
func (l *Live[T]) Snapshot() (T, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap, l.version
}

// Err reports the last refetch failure, nil once a later fetch succeeds.
func (l *Live[T]) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// Changed receives a signal after each snapshot change. Signals coalesce.
func (l *Live[T]) Changed() <-chan struct{} { return l.changed }

// Mutate replaces the snapshot with f applied to it.
func (l *Live[T]) Mutate(f func(T) T) {
	l.mu.Lock()
	l.snap = f(l.snap)
	l.version++
	l.mu.Unlock()
	l.notify()
}

func (l *Live[T]) notify() {
	select {
	case l.changed <- struct{}{}:
	default:
	}
}

// Close unsubscribes and waits for the refetch loop to stop.
func (l *Live[T]) Close() {
	l.once.Do(func() {
		l.cancel()
		l.sub.Close()
		<-l.done
	})
}
