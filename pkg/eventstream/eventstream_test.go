package eventstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("no value received")
		return 0
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	s := New[int]()
	defer s.Shutdown()

	ctx := context.Background()
	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	s.Publish(7)
	assert.Equal(t, 7, recv(t, a))
	assert.Equal(t, 7, recv(t, b))
}

func TestSubscribeAfterPublishMissesEarlierValues(t *testing.T) {
	s := New[int]()
	defer s.Shutdown()

	s.Publish(1)
	ch := s.Subscribe(context.Background())
	s.Publish(2)
	assert.Equal(t, 2, recv(t, ch))
}

func TestContextCancelClosesChannel(t *testing.T) {
	s := New[int]()
	defer s.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	// A publish after removal must not panic or deliver.
	s.Publish(9)
}

func TestShutdownClosesSubscribers(t *testing.T) {
	s := New[int]()
	ch := s.Subscribe(context.Background())
	s.Shutdown()

	_, ok := <-ch
	assert.False(t, ok)

	// Idempotent; late subscribers get a closed channel.
	s.Shutdown()
	late := s.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok)
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	s := New[int]()
	defer s.Shutdown()

	ch := s.Subscribe(context.Background())
	for i := 0; i < subscriberBuffer+10; i++ {
		s.Publish(i)
	}
	// Buffer holds the oldest values; overflow was dropped, not blocked on.
	assert.Equal(t, 0, recv(t, ch))
	assert.Len(t, ch, subscriberBuffer-1)
}
