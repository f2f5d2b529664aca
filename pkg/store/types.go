package store

import "time"

// TrackedUser is one identity the poller refreshes. Token is a credential
// reference supplied by the surrounding service; the core only forwards it
// to the upstream client.
type TrackedUser struct {
	Username string    `json:"username"`
	Token    string    `json:"-"`
	AddedAt  time.Time `json:"added_at"`
}

// ArchivedSnapshot is one published snapshot kept for history and for
// stale-cache fallback across restarts.
type ArchivedSnapshot struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	TakenAt  time.Time `json:"taken_at"`
	Payload  []byte    `json:"payload"`
}
