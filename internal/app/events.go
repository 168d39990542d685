package app

import (
	"sync"
	"time"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

// Broadcaster is an in-process fan-out of domain events to subscribers.
type Broadcaster struct {
	now         func() time.Time
	mu          sync.Mutex
	subscribers map[chan domain.Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return NewBroadcasterWithClock(time.Now)
}

// NewBroadcasterWithClock allows deterministic timestamps in tests.
func NewBroadcasterWithClock(now func() time.Time) *Broadcaster {
	return &Broadcaster{
		now:         now,
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// Subscribe returns a channel of events published after the call.
// The caller must invoke the returned cancel function to avoid leaks.
func (b *Broadcaster) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers evt to every subscriber without blocking.
func (b *Broadcaster) Publish(evt domain.Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = b.now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			// slow subscriber: drop its oldest event to make room
			select {
			case <-ch:
			default:
			}
			ch <- evt
		}
	}
}

// Subscribers reports the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
