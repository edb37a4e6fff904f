package publish

import (
	"errors"
	"sync"
)

// Bus fans frames out to subscriber channels without blocking the
// capture loop: a subscriber that cannot keep up loses frames instead
// of stalling the camera.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]chan<- Frame
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan<- Frame)}
}

// Subscribe registers ch under name. The channel is closed by Close.
func (b *Bus) Subscribe(name string, ch chan<- Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("bus closed")
	}
	if _, ok := b.subs[name]; ok {
		return errors.New("subscriber already registered: " + name)
	}
	b.subs[name] = ch
	return nil
}

// Unsubscribe removes a subscriber without closing its channel.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, name)
}

// Publish delivers frame to every subscriber, dropping it for channels
// whose buffer is full.
func (b *Bus) Publish(frame Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("bus closed")
	}
	for _, ch := range b.subs {
		select {
		case ch <- frame:
		default:
			// slow subscriber, drop
		}
	}
	return nil
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for name, ch := range b.subs {
		close(ch)
		delete(b.subs, name)
	}
}
