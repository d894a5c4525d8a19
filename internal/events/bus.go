package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ikkim/storefront-sync/pkg/logger"
)

// Handler reacts to a change signal. ctx is marked as delivering topic, so a
// Publish of the same topic made with it is dropped. A handler that changes
// the collection itself, rather than re-reading it, must publish with
// Detach(ctx) or the change is never announced.
type Handler func(ctx context.Context, topic Topic)

// Relay carries signals between processes sharing the same local cache.
type Relay interface {
	// Announce tells other processes that topic changed.
	Announce(ctx context.Context, topic Topic) error
	// Listen blocks, calling deliver for every signal from another process,
	// until ctx is done or the relay is closed.
	Listen(ctx context.Context, deliver func(ctx context.Context, topic Topic)) error
	Close() error
}

type deliveringKey struct {
	topic Topic
}

type relayedKey struct{}

// Delivering reports whether ctx belongs to a handler currently reacting to topic.
func Delivering(ctx context.Context, topic Topic) bool {
	return ctx.Value(deliveringKey{topic: topic}) != nil
}

// Relayed reports whether ctx belongs to a signal that arrived from another process.
func Relayed(ctx context.Context) bool {
	return ctx.Value(relayedKey{}) != nil
}

type detachedContext struct {
	context.Context
}

func (c detachedContext) Value(key any) any {
	switch key.(type) {
	case deliveringKey, relayedKey:
		return nil
	}
	return c.Context.Value(key)
}

// Detach returns ctx without its delivery and relay marks, keeping deadlines,
// cancellation and every other value. Publishing with it announces a new
// change even from inside a handler.
func Detach(ctx context.Context) context.Context {
	return detachedContext{Context: ctx}
}

type subscription struct {
	id      uint64
	handler Handler
}

type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]subscription
	relays []Relay
	wg     sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers handler for topic. The returned function removes it and
// is safe to call more than once.
func (b *Bus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[topic]
			for i, sub := range subs {
				if sub.id == id {
					b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers topic to local subscribers, in subscription order, then
// announces it on every attached relay.
func (b *Bus) Publish(ctx context.Context, topic Topic) {
	if !topic.Valid() {
		logger.Warn("Dropping publish of unknown topic", map[string]interface{}{
			"topic": string(topic),
		})
		return
	}
	if Delivering(ctx, topic) {
		logger.Debug("Suppressed re-publish from handler", map[string]interface{}{
			"topic": string(topic),
		})
		return
	}

	b.deliver(ctx, topic)

	if Relayed(ctx) {
		return
	}
	b.mu.RLock()
	relays := append([]Relay(nil), b.relays...)
	b.mu.RUnlock()
	for _, relay := range relays {
		if err := relay.Announce(ctx, topic); err != nil {
			logger.Warn("Failed to announce change to other processes", map[string]interface{}{
				"topic": string(topic),
				"error": err.Error(),
			})
		}
	}
}

// SubscriberCount is the number of handlers registered for topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Bus) deliver(ctx context.Context, topic Topic) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[topic]...)
	b.mu.RUnlock()

	handlerCtx := context.WithValue(ctx, deliveringKey{topic: topic}, true)
	for _, sub := range subs {
		b.invoke(handlerCtx, topic, sub)
	}
}

func (b *Bus) invoke(ctx context.Context, topic Topic, sub subscription) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Change handler panicked", fmt.Errorf("%v", r), map[string]interface{}{
				"topic":           string(topic),
				"subscription_id": sub.id,
			})
		}
	}()
	sub.handler(ctx, topic)
}

// deliverRelayed hands a signal from another process to local subscribers
// without announcing it again.
func (b *Bus) deliverRelayed(ctx context.Context, topic Topic) {
	if !topic.Valid() {
		return
	}
	b.deliver(context.WithValue(ctx, relayedKey{}, true), topic)
}

// AttachRelay starts listening on relay until ctx is done or Close is called.
func (b *Bus) AttachRelay(ctx context.Context, relay Relay) {
	b.mu.Lock()
	b.relays = append(b.relays, relay)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := relay.Listen(ctx, b.deliverRelayed); err != nil && ctx.Err() == nil {
			logger.Error("Change relay stopped", err)
		}
	}()
}

// Close closes every attached relay and waits for their listeners to return.
func (b *Bus) Close() error {
	b.mu.Lock()
	relays := b.relays
	b.relays = nil
	b.mu.Unlock()

	var firstErr error
	for _, relay := range relays {
		if err := relay.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.wg.Wait()
	return firstErr
}
