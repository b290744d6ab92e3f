package engine

import "sync"

const subscriberBuffer = 64

// Broker fans state updates out to subscribers. Publish never blocks; a
// subscriber that falls behind loses updates rather than stalling the
// reconciliation loop.
type Broker[T any] struct {
	mu   sync.Mutex
	subs []chan T
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{}
}

func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- v:
		default:
		}
	}
}

func (b *Broker[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, subscriberBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		for i, sub := range b.subs {
			if sub != ch {
				continue
			}
			last := len(b.subs) - 1
			b.subs[i] = b.subs[last]
			b.subs[last] = nil
			b.subs = b.subs[:last]
			close(ch)
			break
		}
		b.mu.Unlock()
	}
}
