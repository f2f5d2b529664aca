package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryPubsub is an in-process Pubsub. It backs single-node deployments
// and tests; topic membership is mutated on every connect/disconnect, so
// the listener map is guarded for concurrent use across unrelated users.
type MemoryPubsub struct {
	mu        sync.RWMutex
	listeners map[string]map[uuid.UUID]Listener
}

// NewMemory creates an empty in-process pubsub.
func NewMemory() *MemoryPubsub {
	return &MemoryPubsub{
		listeners: make(map[string]map[uuid.UUID]Listener),
	}
}

func (m *MemoryPubsub) Subscribe(topic string, listener Listener) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	topicListeners, ok := m.listeners[topic]
	if !ok {
		topicListeners = make(map[uuid.UUID]Listener)
		m.listeners[topic] = topicListeners
	}
	id := uuid.New()
	topicListeners[id] = listener

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners[topic], id)
	}, nil
}

func (m *MemoryPubsub) Publish(topic string, message []byte) error {
	m.mu.RLock()
	topicListeners, ok := m.listeners[topic]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	listeners := make([]Listener, 0, len(topicListeners))
	for _, l := range topicListeners {
		listeners = append(listeners, l)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, listener := range listeners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener(context.Background(), message)
		}()
	}
	wg.Wait()
	return nil
}

func (*MemoryPubsub) Close() error {
	return nil
}
