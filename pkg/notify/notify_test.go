package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

func TestMemoryPubsub_PublishReachesSubscribers(t *testing.T) {
	bus := NewMemory()

	var mu sync.Mutex
	var got [][]byte
	cancel, err := bus.Subscribe(UserTopic("alice"), func(_ context.Context, msg []byte) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if err := bus.Publish(UserTopic("alice"), []byte("hello")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || string(got[0]) != "hello" {
		t.Errorf("Expected one delivery of %q, got %v", "hello", got)
	}
}

func TestMemoryPubsub_EmptyAudienceIsNoop(t *testing.T) {
	bus := NewMemory()
	if err := bus.Publish(UserTopic("nobody"), []byte("dropped")); err != nil {
		t.Errorf("Expected no error on empty audience, got %v", err)
	}
}

func TestMemoryPubsub_TopicsAreIsolated(t *testing.T) {
	bus := NewMemory()

	delivered := 0
	cancel, _ := bus.Subscribe(UserTopic("alice"), func(_ context.Context, _ []byte) {
		delivered++
	})
	defer cancel()

	bus.Publish(UserTopic("bob"), []byte("for bob"))
	if delivered != 0 {
		t.Errorf("Expected alice's listener untouched, got %d deliveries", delivered)
	}
}

func TestMemoryPubsub_CancelStopsDelivery(t *testing.T) {
	bus := NewMemory()

	delivered := 0
	cancel, _ := bus.Subscribe(UserTopic("alice"), func(_ context.Context, _ []byte) {
		delivered++
	})
	cancel()

	bus.Publish(UserTopic("alice"), []byte("late"))
	if delivered != 0 {
		t.Errorf("Expected no delivery after cancel, got %d", delivered)
	}
}

func TestNotifier_ActivityEnvelope(t *testing.T) {
	bus := NewMemory()
	n := NewNotifier(bus)

	var mu sync.Mutex
	var got []byte
	cancel, _ := bus.Subscribe(UserTopic("alice"), func(_ context.Context, msg []byte) {
		mu.Lock()
		got = msg
		mu.Unlock()
	})
	defer cancel()

	snapshot := json.RawMessage(`{"commits":5}`)
	if err := n.PublishActivity("alice", snapshot); err != nil {
		t.Fatalf("PublishActivity failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	var env Envelope
	if err := json.Unmarshal(got, &env); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	if env.Event != EventActivityUpdate || env.UserID != "alice" {
		t.Errorf("Unexpected envelope: %+v", env)
	}
	if string(env.Payload) != `{"commits":5}` {
		t.Errorf("Expected full snapshot payload, got %s", env.Payload)
	}
}

func TestNotifier_ConnectedEnvelope(t *testing.T) {
	bus := NewMemory()
	n := NewNotifier(bus)

	var mu sync.Mutex
	var got []byte
	cancel, _ := bus.Subscribe(UserTopic("alice"), func(_ context.Context, msg []byte) {
		mu.Lock()
		got = msg
		mu.Unlock()
	})
	defer cancel()

	if err := n.PublishConnected("alice"); err != nil {
		t.Fatalf("PublishConnected failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	var env Envelope
	if err := json.Unmarshal(got, &env); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	if env.Event != EventConnected {
		t.Errorf("Expected connected event, got %s", env.Event)
	}
}
