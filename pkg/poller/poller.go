// Package poller drives the background refresh loop: on a fixed interval it
// scans the tracked-user set and refreshes each user independent of any
// inbound request.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/devpulse-io/devpulse/pkg/aggregate"
	"github.com/devpulse-io/devpulse/pkg/store"
)

const defaultInterval = 10 * time.Minute

// Registry lists the users to refresh. Owned by the surrounding service;
// read-only here.
type Registry interface {
	ListUsers(ctx context.Context) ([]store.TrackedUser, error)
}

// Refresher produces the current snapshot for one user.
type Refresher interface {
	Refresh(ctx context.Context, username, token string) (*aggregate.Result, error)
}

// Publisher delivers a fresh snapshot to a user's live sessions.
type Publisher interface {
	PublishActivity(username string, snapshot json.RawMessage) error
}

// Archiver persists published snapshots. Optional.
type Archiver interface {
	SaveSnapshot(ctx context.Context, username string, takenAt time.Time, payload []byte) error
}

// Poller manages the periodic refresh loop over all tracked users.
type Poller struct {
	registry  Registry
	refresher Refresher
	publisher Publisher
	archiver  Archiver
	interval  time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
	lastRun  time.Time

	wg sync.WaitGroup
}

// NewPoller creates a poller over the given collaborators. A zero interval
// falls back to the default.
func NewPoller(registry Registry, refresher Refresher, publisher Publisher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		registry:  registry,
		refresher: refresher,
		publisher: publisher,
		interval:  interval,
		inFlight:  make(map[string]bool),
	}
}

// SetArchiver wires durable snapshot archiving into the publish path.
func (p *Poller) SetArchiver(a Archiver) {
	p.archiver = a
}

// LastRun returns when the last tick started processing.
func (p *Poller) LastRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun
}

// Start begins the polling loop and blocks until the context is
// cancelled, then waits for in-flight refreshes to drain.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Println("Poller started")

	for {
		select {
		case <-ctx.Done():
			log.Println("Poller stopping due to context cancellation")
			p.wg.Wait()
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// pollAll runs one tick: refresh every tracked user not already
// mid-refresh. Per-user failures are logged and never delay or abort the
// other users in the tick.
func (p *Poller) pollAll(ctx context.Context) {
	users, err := p.registry.ListUsers(ctx)
	if err != nil {
		log.Printf("Failed to list tracked users: %v", err)
		return
	}

	p.mu.Lock()
	p.lastRun = time.Now()
	p.mu.Unlock()

	for _, user := range users {
		if !p.begin(user.Username) {
			continue // still mid-refresh from an earlier tick
		}
		p.wg.Add(1)
		go func(u store.TrackedUser) {
			defer p.wg.Done()
			defer p.end(u.Username)
			p.poll(ctx, u)
		}(user)
	}
}

// poll refreshes a single user and publishes the result when the refresh
// actually produced new data.
func (p *Poller) poll(ctx context.Context, user store.TrackedUser) {
	result, err := p.refresher.Refresh(ctx, user.Username, user.Token)
	if err != nil {
		// The generic message is for callers; log the cause here.
		cause := err
		var aggErr *aggregate.AggregationError
		if errors.As(err, &aggErr) && aggErr.Err != nil {
			cause = aggErr.Err
		}
		log.Printf("Refresh failed for user %s: %v", user.Username, cause)
		return
	}
	if result.FromCache || result.Stale {
		return // nothing new to deliver
	}

	if p.archiver != nil {
		if err := p.archiver.SaveSnapshot(ctx, user.Username, time.Now().UTC(), result.Payload); err != nil {
			log.Printf("Failed to archive snapshot for user %s: %v", user.Username, err)
		}
	}
	if err := p.publisher.PublishActivity(user.Username, result.Payload); err != nil {
		log.Printf("Failed to publish snapshot for user %s: %v", user.Username, err)
	}
}

func (p *Poller) begin(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[username] {
		return false
	}
	p.inFlight[username] = true
	return true
}

func (p *Poller) end(username string) {
	p.mu.Lock()
	delete(p.inFlight, username)
	p.mu.Unlock()
}
