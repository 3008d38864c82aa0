package broadcast

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	b := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(b.Close)
	return b
}

func recvOne(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		require.True(t, ok, "channel closed before event arrived")
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBroadcasterDeliversInOrder(t *testing.T) {
	b := newTestBroadcaster(t)
	sub, cancel := b.Subscribe("g1")
	defer cancel()

	for i := 0; i < 10; i++ {
		b.Publish("g1", []byte(fmt.Sprintf("event-%d", i)))
	}
	for i := 0; i < 10; i++ {
		require.Equal(t, fmt.Sprintf("event-%d", i), string(recvOne(t, sub)))
	}
}

func TestBroadcasterIsolatesGroups(t *testing.T) {
	b := newTestBroadcaster(t)
	sub1, cancel1 := b.Subscribe("g1")
	defer cancel1()
	sub2, cancel2 := b.Subscribe("g2")
	defer cancel2()

	b.Publish("g1", []byte("for-g1"))

	require.Equal(t, "for-g1", string(recvOne(t, sub1)))
	select {
	case event := <-sub2.Events():
		t.Fatalf("subscriber of g2 received %q", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcasterFansOut(t *testing.T) {
	b := newTestBroadcaster(t)
	subA, cancelA := b.Subscribe("g1")
	defer cancelA()
	subB, cancelB := b.Subscribe("g1")
	defer cancelB()

	b.Publish("g1", []byte("shared"))

	require.Equal(t, "shared", string(recvOne(t, subA)))
	require.Equal(t, "shared", string(recvOne(t, subB)))
}

func TestBroadcasterUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBroadcaster(t)
	sub, cancel := b.Subscribe("g1")
	cancel()
	cancel() // idempotent

	_, ok := <-sub.Events()
	require.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBroadcasterEvictsSlowSubscriber(t *testing.T) {
	b := newTestBroadcaster(t)
	slow, cancelSlow := b.Subscribe("g1")
	defer cancelSlow()

	// Never drain: once the buffer is full the next dispatch evicts.
	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish("g1", []byte("x"))
	}

	deadline := time.After(time.Second)
	received := 0
	for {
		select {
		case _, ok := <-slow.Events():
			if !ok {
				require.LessOrEqual(t, received, subscriberBuffer)
				return
			}
			received++
		case <-deadline:
			t.Fatal("slow subscriber was never evicted")
		}
	}
}

func TestBroadcasterCloseClosesSubscribers(t *testing.T) {
	b := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sub, _ := b.Subscribe("g1")
	b.Close()

	_, ok := <-sub.Events()
	require.False(t, ok)

	// Publish and Subscribe after Close are no-ops.
	b.Publish("g1", []byte("late"))
	late, _ := b.Subscribe("g1")
	_, ok = <-late.Events()
	require.False(t, ok)
}
