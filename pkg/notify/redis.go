package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisPubsub carries the realtime stream over redis channels so detached
// processes (the TUI, extra transport nodes) can subscribe to the same
// topics the daemon publishes on.
type RedisPubsub struct {
	client *redis.Client

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// NewRedis wraps an existing redis client.
func NewRedis(client *redis.Client) *RedisPubsub {
	return &RedisPubsub{
		client: client,
		subs:   make(map[*redis.PubSub]struct{}),
	}
}

func (r *RedisPubsub) Subscribe(topic string, listener Listener) (func(), error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("pubsub closed")
	}
	ps := r.client.Subscribe(context.Background(), topic)
	r.subs[ps] = struct{}{}
	r.mu.Unlock()

	// Confirm the subscription before returning so a publish immediately
	// after Subscribe is not lost.
	if _, err := ps.Receive(context.Background()); err != nil {
		r.remove(ps)
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range ps.Channel() {
			listener(context.Background(), []byte(msg.Payload))
		}
	}()

	return func() { r.remove(ps) }, nil
}

func (r *RedisPubsub) remove(ps *redis.PubSub) {
	r.mu.Lock()
	delete(r.subs, ps)
	r.mu.Unlock()
	_ = ps.Close()
}

func (r *RedisPubsub) Publish(topic string, message []byte) error {
	if err := r.client.Publish(context.Background(), topic, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (r *RedisPubsub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for ps := range r.subs {
		_ = ps.Close()
	}
	r.subs = make(map[*redis.PubSub]struct{})
	return nil
}
