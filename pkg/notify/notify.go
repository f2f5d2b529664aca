// Package notify delivers fresh activity snapshots to the live sessions of
// a user. Delivery is at-most-once and only to subscribers live at publish
// time: there is no buffering or replay, and publishing to an empty
// audience is a no-op.
//
// The core never holds references to transport connections. The transport
// layer subscribes each admitted connection to its user's topic after it
// has validated the session identity; unauthenticated attempts are
// rejected before they ever reach a topic.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventKind names the realtime event types emitted on a user topic.
type EventKind string

const (
	// EventConnected is sent to a session on successful join.
	EventConnected EventKind = "connected"
	// EventActivityUpdate carries a full activity snapshot.
	EventActivityUpdate EventKind = "activity-update"
)

// Listener receives messages published to a subscribed topic.
type Listener func(ctx context.Context, message []byte)

// Pubsub is the delivery fabric: topics addressed by name, messages
// fanned out to whoever is subscribed right now.
type Pubsub interface {
	// Subscribe registers listener on topic and returns a cancel func
	// that removes it.
	Subscribe(topic string, listener Listener) (cancel func(), err error)

	// Publish delivers message to every current subscriber of topic.
	Publish(topic string, message []byte) error

	Close() error
}

// UserTopic is the per-user delivery group, mirroring the realtime room a
// session joins on connect.
func UserTopic(username string) string {
	return "user:" + username
}

// Envelope is the wire form of a realtime event.
type Envelope struct {
	Event   EventKind       `json:"event"`
	UserID  string          `json:"userId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notifier publishes realtime events for users on top of a Pubsub.
type Notifier struct {
	bus Pubsub
}

// NewNotifier creates a notifier over the given delivery fabric.
func NewNotifier(bus Pubsub) *Notifier {
	return &Notifier{bus: bus}
}

// PublishActivity delivers a complete snapshot to the user's live
// sessions. Fire and forget: an empty audience is not an error.
func (n *Notifier) PublishActivity(username string, snapshot json.RawMessage) error {
	return n.publish(username, Envelope{
		Event:   EventActivityUpdate,
		UserID:  username,
		Payload: snapshot,
	})
}

// PublishConnected emits the join confirmation the transport sends once a
// session has been admitted to the user's topic.
func (n *Notifier) PublishConnected(username string) error {
	return n.publish(username, Envelope{
		Event:  EventConnected,
		UserID: username,
	})
}

func (n *Notifier) publish(username string, env Envelope) error {
	message, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", env.Event, err)
	}
	if err := n.bus.Publish(UserTopic(username), message); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", env.Event, err)
	}
	return nil
}
