package input

import (
	"sort"
	"sync"
)

// Broadcaster fans events out to every subscribed handler.
// Handlers run on the goroutine calling Emit, outside the broadcaster's lock,
// so a handler may unsubscribe itself.
type Broadcaster struct {
	mu       sync.RWMutex
	next     Subscription
	handlers map[Subscription]Handler
	closed   bool
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{handlers: make(map[Subscription]Handler)}
}

// Subscribe registers h
func (b *Broadcaster) Subscribe(h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	b.next++
	b.handlers[b.next] = h
	return b.next, nil
}

// Unsubscribe removes a handler; unknown subscriptions are ignored
func (b *Broadcaster) Unsubscribe(s Subscription) {
	b.mu.Lock()
	delete(b.handlers, s)
	b.mu.Unlock()
}

// Emit delivers ev to the handlers subscribed at the time of the call, in subscription order
func (b *Broadcaster) Emit(ev Event) {
	b.mu.RLock()
	ids := make([]Subscription, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	b.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		b.mu.RLock()
		h, ok := b.handlers[id]
		b.mu.RUnlock()
		if ok {
			h(ev)
		}
	}
}

// Len returns the number of active subscriptions
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Close drops all handlers and rejects further subscriptions
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	b.handlers = make(map[Subscription]Handler)
	b.mu.Unlock()
}
