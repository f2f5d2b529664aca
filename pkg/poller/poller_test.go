package poller

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/devpulse-io/devpulse/pkg/aggregate"
	"github.com/devpulse-io/devpulse/pkg/github"
	"github.com/devpulse-io/devpulse/pkg/store"
)

type fakeRegistry struct {
	users []store.TrackedUser
	err   error
}

func (f *fakeRegistry) ListUsers(context.Context) ([]store.TrackedUser, error) {
	return f.users, f.err
}

type fakeRefresher struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]*aggregate.Result
	errs    map[string]error
	block   chan struct{}
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{
		calls:   make(map[string]int),
		results: make(map[string]*aggregate.Result),
		errs:    make(map[string]error),
	}
}

func (f *fakeRefresher) Refresh(_ context.Context, username, _ string) (*aggregate.Result, error) {
	f.mu.Lock()
	f.calls[username]++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err := f.errs[username]; err != nil {
		return nil, err
	}
	return f.results[username], nil
}

func (f *fakeRefresher) callCount(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[username]
}

type fakePublisher struct {
	mu        sync.Mutex
	published map[string][]json.RawMessage
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string][]json.RawMessage)}
}

func (f *fakePublisher) PublishActivity(username string, snapshot json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[username] = append(f.published[username], snapshot)
	return nil
}

func (f *fakePublisher) count(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[username])
}

type fakeArchiver struct {
	mu    sync.Mutex
	saved map[string][][]byte
}

func newFakeArchiver() *fakeArchiver {
	return &fakeArchiver{saved: make(map[string][][]byte)}
}

func (f *fakeArchiver) SaveSnapshot(_ context.Context, username string, _ time.Time, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[username] = append(f.saved[username], payload)
	return nil
}

func TestPollAll_FailureDoesNotAffectSiblings(t *testing.T) {
	registry := &fakeRegistry{users: []store.TrackedUser{
		{Username: "alice", Token: "tok-a"},
		{Username: "bob", Token: "tok-b"},
	}}
	refresher := newFakeRefresher()
	refresher.errs["alice"] = &aggregate.AggregationError{
		Username: "alice",
		Err:      &github.AuthError{StatusCode: 401},
	}
	refresher.results["bob"] = &aggregate.Result{
		Snapshot: &aggregate.Snapshot{Commits: 2},
		Payload:  []byte(`{"commits":2}`),
	}
	publisher := newFakePublisher()
	archiver := newFakeArchiver()

	p := NewPoller(registry, refresher, publisher, time.Minute)
	p.SetArchiver(archiver)

	p.pollAll(context.Background())
	p.wg.Wait()

	if refresher.callCount("alice") != 1 || refresher.callCount("bob") != 1 {
		t.Error("Expected both users refreshed in the tick")
	}
	if publisher.count("alice") != 0 {
		t.Error("Expected nothing published for the failing user")
	}
	if publisher.count("bob") != 1 {
		t.Errorf("Expected bob's snapshot published once, got %d", publisher.count("bob"))
	}
	if len(archiver.saved["bob"]) != 1 {
		t.Error("Expected bob's snapshot archived")
	}
}

func TestPollAll_CachedResultIsNotRepublished(t *testing.T) {
	registry := &fakeRegistry{users: []store.TrackedUser{{Username: "alice"}}}
	refresher := newFakeRefresher()
	refresher.results["alice"] = &aggregate.Result{
		Snapshot:  &aggregate.Snapshot{},
		Payload:   []byte(`{}`),
		FromCache: true,
	}
	publisher := newFakePublisher()

	p := NewPoller(registry, refresher, publisher, time.Minute)
	p.pollAll(context.Background())
	p.wg.Wait()

	if publisher.count("alice") != 0 {
		t.Error("Expected no publish for a cache-served result")
	}
}

func TestPollAll_SkipsUsersMidRefresh(t *testing.T) {
	registry := &fakeRegistry{users: []store.TrackedUser{{Username: "alice"}}}
	refresher := newFakeRefresher()
	refresher.block = make(chan struct{})
	refresher.results["alice"] = &aggregate.Result{
		Snapshot: &aggregate.Snapshot{},
		Payload:  []byte(`{}`),
	}
	publisher := newFakePublisher()

	p := NewPoller(registry, refresher, publisher, time.Minute)

	ctx := context.Background()
	p.pollAll(ctx)
	// Second tick while alice's refresh is still in flight.
	p.pollAll(ctx)

	close(refresher.block)
	p.wg.Wait()

	if got := refresher.callCount("alice"); got != 1 {
		t.Errorf("Expected the in-flight user skipped, got %d refreshes", got)
	}
}

func TestStart_ShutsDownCleanly(t *testing.T) {
	registry := &fakeRegistry{users: []store.TrackedUser{{Username: "alice"}}}
	refresher := newFakeRefresher()
	refresher.results["alice"] = &aggregate.Result{
		Snapshot: &aggregate.Snapshot{},
		Payload:  []byte(`{}`),
	}
	publisher := newFakePublisher()

	p := NewPoller(registry, refresher, publisher, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	// Let a few ticks fire, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poller did not stop after cancellation")
	}

	if p.LastRun().IsZero() {
		t.Error("Expected LastRun to be set after ticks")
	}
	if refresher.callCount("alice") == 0 {
		t.Error("Expected at least one refresh before shutdown")
	}
}
