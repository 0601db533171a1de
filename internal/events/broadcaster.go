// Package events fans out ledger appends to live readers such as SSE streams.
package events

import (
	"sync"

	"github.com/vadiminshakov/rotor/internal/domain"
)

// EntryBroadcaster fans out entries to all subscribers via buffered channels.
// A slow subscriber misses notifications instead of blocking the publisher.
type EntryBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan domain.Entry]struct{}
	buffer int
}

// NewEntryBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewEntryBroadcaster(buffer int) *EntryBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &EntryBroadcaster{
		subs:   make(map[chan domain.Entry]struct{}),
		buffer: buffer,
	}
}

// Publish sends the entry to all subscribers, dropping it for readers that are full.
func (b *EntryBroadcaster) Publish(e domain.Entry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel that receives entries until Unsubscribe is called.
func (b *EntryBroadcaster) Subscribe() <-chan domain.Entry {
	ch := make(chan domain.Entry, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *EntryBroadcaster) Unsubscribe(sub <-chan domain.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		if ch == sub {
			delete(b.subs, ch)
			close(ch)
			return
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *EntryBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
