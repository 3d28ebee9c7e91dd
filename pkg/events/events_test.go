package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue()
	q.Push(&Event{Kind: BundleReceived, LinkName: "a"})
	q.Push(&Event{Kind: BundleReceived, LinkName: "b"})
	q.Push(&Event{Kind: BundleReceived, LinkName: "c"})
	require.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		e, ok := q.Pop(ctx)
		require.True(t, ok)
		require.Equal(t, want, e.LinkName)
	}
	require.Equal(t, 0, q.Len())
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	done := make(chan *Event, 1)
	go func() {
		e, ok := q.Pop(context.Background())
		if ok {
			done <- e
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(&Event{Kind: ContactUp, LinkName: "l1"})

	select {
	case e := <-done:
		require.Equal(t, "l1", e.LinkName)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueuePopRespectsContextCancellation(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Pop(ctx)
	require.False(t, ok)
}

func TestQueueCloseDrainsThenStops(t *testing.T) {
	q := NewQueue()
	q.Push(&Event{Kind: Shutdown})
	q.Close()

	e, ok := q.Pop(context.Background())
	require.True(t, ok)
	require.Equal(t, Shutdown, e.Kind)

	_, ok = q.Pop(context.Background())
	require.False(t, ok)
}
