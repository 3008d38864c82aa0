// Package broadcast fans group events out to live subscribers. Each group
// gets its own ordered queue and dispatcher goroutine, so events within a
// group are delivered in publish order while groups never block each other.
package broadcast

import (
	"log/slog"
	"sync"
)

const (
	// queueSize bounds the per-group backlog between Publish and dispatch.
	queueSize = 256
	// subscriberBuffer is how far one subscriber may lag before eviction.
	subscriberBuffer = 16
)

// Subscriber receives a group's events. The channel is closed on
// unsubscribe, broadcaster shutdown, or eviction for lagging.
type Subscriber struct {
	ch chan []byte
}

// Events returns the subscriber's delivery channel.
func (s *Subscriber) Events() <-chan []byte {
	return s.ch
}

type hub struct {
	mu    sync.Mutex
	subs  map[*Subscriber]struct{}
	queue chan []byte
}

// Broadcaster routes published events to per-group subscriber sets.
type Broadcaster struct {
	mu     sync.Mutex
	hubs   map[string]*hub
	logger *slog.Logger
	closed bool
	wg     sync.WaitGroup
}

func New(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubs:   make(map[string]*hub),
		logger: logger,
	}
}

// Subscribe registers a listener for a group's events. The returned cancel
// function is idempotent and must be called when the listener goes away.
func (b *Broadcaster) Subscribe(groupID string) (*Subscriber, func()) {
	sub := &Subscriber{ch: make(chan []byte, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub, func() {}
	}
	h := b.hub(groupID)
	b.mu.Unlock()

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}
			h.mu.Unlock()
		})
	}
	return sub, cancel
}

// Publish enqueues an event for a group. It never blocks: if the group's
// queue is full the event is dropped and logged, since callers hold the
// group write lock and must not stall on delivery.
func (b *Broadcaster) Publish(groupID string, event []byte) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	h := b.hub(groupID)
	b.mu.Unlock()

	select {
	case h.queue <- event:
	default:
		b.logger.Warn("event queue full, dropping event", "group_id", groupID)
	}
}

// Close stops all dispatchers and closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	hubs := b.hubs
	b.hubs = make(map[string]*hub)
	b.mu.Unlock()

	for _, h := range hubs {
		close(h.queue)
	}
	b.wg.Wait()
}

// hub returns the group's hub, creating it and starting its dispatcher on
// first use. Caller must hold b.mu.
func (b *Broadcaster) hub(groupID string) *hub {
	h, ok := b.hubs[groupID]
	if !ok {
		h = &hub{
			subs:  make(map[*Subscriber]struct{}),
			queue: make(chan []byte, queueSize),
		}
		b.hubs[groupID] = h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.dispatch(groupID, h)
		}()
	}
	return h
}

// dispatch delivers queued events to the group's subscribers in order.
// A subscriber whose buffer is full is evicted rather than allowed to
// stall the rest of the group.
func (b *Broadcaster) dispatch(groupID string, h *hub) {
	for event := range h.queue {
		h.mu.Lock()
		for sub := range h.subs {
			select {
			case sub.ch <- event:
			default:
				delete(h.subs, sub)
				close(sub.ch)
				b.logger.Warn("evicting slow subscriber", "group_id", groupID)
			}
		}
		h.mu.Unlock()
	}

	h.mu.Lock()
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
	h.mu.Unlock()
}
