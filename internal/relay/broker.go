package relay

import (
	"sync"
)

// Broker fans progress events out to every subscriber. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Broker struct {
	buffer int

	mu          sync.Mutex
	nextId      int
	subscribers map[int]chan Event
}

func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{
		buffer:      buffer,
		subscribers: map[int]chan Event{},
	}
}

// Subscribe returns a channel of events and a function that unsubscribes and closes it.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextId
	b.nextId++
	ch := make(chan Event, b.buffer)
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber with room for it and returns how many got it.
func (b *Broker) Publish(ev Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
