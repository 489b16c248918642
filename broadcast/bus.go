// Package broadcast carries the same-process "session state changed"
// signal between independently mounted components: a logout performed by
// one component publishes, and every other component re-reads storage.
// The signal has no payload. Cross-process propagation is the storage
// layer's job; the guard composes both.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// Bus is a minimal same-process pub/sub fan-out.
type Bus struct {
	subscribers map[string]func()
	lock        sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]func()),
	}
}

// Subscribe registers fn to run on every Publish. The returned cancel
// function is idempotent; after it returns, fn will not be called again.
func (b *Bus) Subscribe(fn func()) (cancel func()) {
	subscriberID := uuid.New().String()

	b.lock.Lock()
	b.subscribers[subscriberID] = fn
	b.lock.Unlock()

	return func() {
		b.lock.Lock()
		delete(b.subscribers, subscriberID)
		b.lock.Unlock()
	}
}

// Publish notifies all current subscribers synchronously. Callbacks run
// outside the lock so a subscriber may unsubscribe or publish again.
func (b *Bus) Publish() {
	b.lock.RLock()
	callbacks := make([]func(), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		callbacks = append(callbacks, fn)
	}
	b.lock.RUnlock()

	for _, fn := range callbacks {
		fn()
	}
}
