// Package memory provides an in-process Bus implementation used by tests and
// the single-process worker mode. It mirrors the in-memory stream
// fakes (runtime/agent/stream inmem helpers): no ordering guarantee across
// channels, publish-order preserved within one channel.
package memory

import (
	"context"
	"sync"

	"github.com/researchlab/orchestrator/internal/notify"
)

// Bus is a goroutine-safe in-memory Notification Bus.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]chan notify.Event
}

// New constructs an empty in-memory Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]chan notify.Event)}
}

// Publish fans the event out to every subscriber currently registered on
// channel. Slow subscribers are dropped from, not blocked on: the channel
// buffer is sized generously and a full buffer causes the event to be
// skipped for that subscriber only, preserving best-effort semantics.
func (b *Bus) Publish(_ context.Context, channel string, event notify.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber on channel and returns its event
// stream plus an unsubscribe function.
func (b *Bus) Subscribe(_ context.Context, channel string) (<-chan notify.Event, func(), error) {
	ch := make(chan notify.Event, 64)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[channel]
		for i, c := range list {
			if c == ch {
				b.subs[channel] = append(list[:i], list[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe, nil
}
