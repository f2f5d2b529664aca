// Package cache provides the shared key/value store the aggregator uses as
// a cache-aside layer in front of the GitHub client.
//
// Two independent namespaces exist per user: the activity tier (short TTL)
// and the contribution-calendar tier (long TTL). Expiring one never touches
// the other. The store is shared by all concurrent refreshes without
// locking: two racing misses may both fetch and both write, and the last
// write wins. Every write is a complete snapshot, so the end state is
// always internally consistent.
package cache

import (
	"context"
	"time"
)

const (
	// ActivityTTL bounds the activity tier.
	ActivityTTL = time.Hour
	// ContributionsTTL bounds the contribution-calendar tier.
	ContributionsTTL = 24 * time.Hour
)

// Cache is a key/value store with per-entry time-to-live.
type Cache interface {
	// Get returns the payload for key, or ok=false on a miss. Expired
	// entries are misses.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)

	// Set stores payload under key for the given TTL, replacing any
	// previous entry wholesale.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// ActivityKey is the activity-tier key for a user.
func ActivityKey(username string) string {
	return "github:activity:" + username
}

// ContributionsKey is the contribution-calendar-tier key for a user.
func ContributionsKey(username string) string {
	return "github:contributions:" + username
}
