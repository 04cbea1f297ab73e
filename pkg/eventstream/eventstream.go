// Package eventstream is a small generic broadcast primitive. The run
// session publishes its view after every reducer application; UI layers
// subscribe without knowing which transport produced the change.
package eventstream

import (
	"context"
	"sync"
	"sync/atomic"
)

// subscriberBuffer absorbs bursts (a poll snapshot can replace hundreds of
// events at once). Publish never blocks; a full subscriber drops updates,
// which is safe because every published value is a complete snapshot.
const subscriberBuffer = 64

type subscriber[T any] struct {
	ch     chan T
	closed atomic.Bool
}

type Streamer[T any] struct {
	mu          sync.RWMutex
	subscribers map[*subscriber[T]]struct{}
	closed      atomic.Bool
}

func New[T any]() *Streamer[T] {
	return &Streamer[T]{subscribers: make(map[*subscriber[T]]struct{})}
}

// Subscribe returns a channel receiving every value published after this
// call. The channel closes when ctx is cancelled or the streamer shuts down.
func (s *Streamer[T]) Subscribe(ctx context.Context) <-chan T {
	sub := &subscriber[T]{ch: make(chan T, subscriberBuffer)}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.remove(sub)
	}()
	return sub.ch
}

// Publish fans the value out to all live subscribers without blocking.
func (s *Streamer[T]) Publish(v T) {
	if s.closed.Load() {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for sub := range s.subscribers {
		if sub.closed.Load() {
			continue
		}
		select {
		case sub.ch <- v:
		default:
		}
	}
}

// Shutdown closes every subscriber channel and rejects further publishes.
func (s *Streamer[T]) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subscribers {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
	}
	s.subscribers = nil
}

func (s *Streamer[T]) remove(sub *subscriber[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers != nil {
		delete(s.subscribers, sub)
	}
	if sub.closed.CompareAndSwap(false, true) {
		close(sub.ch)
	}
}
