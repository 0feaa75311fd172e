package events

import (
	"context"
	"errors"
	"sync"
)

var ErrBrokerClosed = errors.New("broker closed")

type subscriber struct {
	ch   chan Event
	once sync.Once
}

// MemoryBroker is an in-process Broker for single-instance deployments.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*subscriber]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	for sub := range b.subs[ev.ChatID] {
		select {
		case sub.ch <- ev:
		default:
			// subscriber is behind, drop
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, chatID string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrBrokerClosed
	}

	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}
	if b.subs[chatID] == nil {
		b.subs[chatID] = make(map[*subscriber]struct{})
	}
	b.subs[chatID][sub] = struct{}{}

	done := make(chan struct{})
	cancel := func() {
		b.remove(chatID, sub)
		select {
		case <-done:
		default:
			close(done)
		}
	}
	go func() {
		select {
		case <-ctx.Done():
			b.remove(chatID, sub)
		case <-done:
		}
	}()
	return sub.ch, cancel, nil
}

func (b *MemoryBroker) remove(chatID string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[chatID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, chatID)
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

// Subscribers reports the number of live subscriptions for chatID.
func (b *MemoryBroker) Subscribers(chatID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[chatID])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for chatID, set := range b.subs {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(b.subs, chatID)
	}
	return nil
}
