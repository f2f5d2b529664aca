package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devpulse-io/devpulse/pkg/cache"
	"github.com/devpulse-io/devpulse/pkg/github"
	"github.com/devpulse-io/devpulse/pkg/ratebudget"
)

const defaultFetchTimeout = 15 * time.Second

// AggregationError is the single failure surface of a refresh. Its message
// is the generic one shown to callers; the originating cause is reachable
// through Unwrap for server-side logs only.
type AggregationError struct {
	Username string
	Err      error
}

func (e *AggregationError) Error() string {
	return "failed to fetch GitHub activity"
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// Source issues the individual upstream fetch operations. *github.Client
// satisfies it.
type Source interface {
	RecentCommits(ctx context.Context, username, token string) (github.CommitResult, error)
	PullRequests(ctx context.Context, username, token string) (github.IssueResult, error)
	Issues(ctx context.Context, username, token string) (github.IssueResult, error)
	Profile(ctx context.Context, username, token string) (github.Profile, error)
	ContributionCalendar(ctx context.Context, username, token string) (github.ContributionCalendar, error)
	TopLanguages(ctx context.Context, username, token string) ([]github.LanguageCount, error)
}

// ArchiveLookup retrieves the last published payload for a user from
// durable storage. Used for the quota fallback when the process has no
// in-memory copy yet.
type ArchiveLookup func(ctx context.Context, username string) ([]byte, error)

// Result is one refresh outcome. Payload is the canonical serialized
// snapshot: byte-identical to the cache entry it was read from or written
// to.
type Result struct {
	Snapshot  *Snapshot
	Payload   []byte
	FromCache bool
	Stale     bool
}

// Aggregator orchestrates the parallel upstream fetches, merges the
// results into one snapshot, and applies cache-aside logic across the two
// TTL tiers. At most one refresh per user runs at any instant; concurrent
// callers for the same user share the in-flight result.
type Aggregator struct {
	source  Source
	cache   cache.Cache
	tracker *ratebudget.Tracker

	fetchTimeout time.Duration
	archive      ArchiveLookup
	group        singleflight.Group

	mu        sync.Mutex
	lastKnown map[string][]byte

	now func() time.Time
}

// NewAggregator creates an aggregator over the given source and cache.
// tracker may be nil, which disables the rate-budget gate.
func NewAggregator(source Source, c cache.Cache, tracker *ratebudget.Tracker) *Aggregator {
	return &Aggregator{
		source:       source,
		cache:        c,
		tracker:      tracker,
		fetchTimeout: defaultFetchTimeout,
		lastKnown:    make(map[string][]byte),
		now:          time.Now,
	}
}

// SetFetchTimeout bounds each fan-out set. Zero restores the default.
func (a *Aggregator) SetFetchTimeout(d time.Duration) {
	if d <= 0 {
		d = defaultFetchTimeout
	}
	a.fetchTimeout = d
}

// SetArchive wires a durable snapshot lookup for the quota fallback.
func (a *Aggregator) SetArchive(lookup ArchiveLookup) {
	a.archive = lookup
}

// SetClock replaces the time source. Test hook.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// Refresh returns the current snapshot for a user, fetching from upstream
// only when the activity cache tier is cold. Single-flight per user.
func (a *Aggregator) Refresh(ctx context.Context, username, token string) (*Result, error) {
	v, err, _ := a.group.Do(username, func() (any, error) {
		return a.refresh(ctx, username, token)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (a *Aggregator) refresh(ctx context.Context, username, token string) (*Result, error) {
	activityKey := cache.ActivityKey(username)

	payload, ok, err := a.cache.Get(ctx, activityKey)
	if err != nil {
		// A broken cache degrades to a miss, not a failure.
		log.Printf("Cache read failed for %s: %v", activityKey, err)
	}
	if ok {
		var snap Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			log.Printf("Discarding undecodable cache entry %s: %v", activityKey, err)
		} else {
			CacheRequests.WithLabelValues("activity", "hit").Inc()
			RefreshTotal.WithLabelValues("cache_hit").Inc()
			a.remember(username, payload)
			return &Result{Snapshot: &snap, Payload: payload, FromCache: true}, nil
		}
	}
	CacheRequests.WithLabelValues("activity", "miss").Inc()

	// Budget gate: with the quota spent, serve the last known snapshot
	// (stale is fine) instead of burning calls that will be rejected.
	if a.tracker != nil && a.tracker.Exhausted(a.now()) {
		if res := a.fallback(ctx, username); res != nil {
			RefreshTotal.WithLabelValues("stale_fallback").Inc()
			return res, nil
		}
		budget, _ := a.tracker.Snapshot()
		RefreshTotal.WithLabelValues("error").Inc()
		return nil, &AggregationError{Username: username, Err: &github.QuotaError{ResetAt: budget.ResetAt}}
	}

	var (
		commits github.CommitResult
		prs     github.IssueResult
		issues  github.IssueResult
		profile github.Profile
	)
	err = joinAll(ctx, a.fetchTimeout,
		func(ctx context.Context) error {
			var err error
			commits, err = a.source.RecentCommits(ctx, username, token)
			return err
		},
		func(ctx context.Context) error {
			var err error
			prs, err = a.source.PullRequests(ctx, username, token)
			return err
		},
		func(ctx context.Context) error {
			var err error
			issues, err = a.source.Issues(ctx, username, token)
			return err
		},
		func(ctx context.Context) error {
			var err error
			profile, err = a.source.Profile(ctx, username, token)
			return err
		},
	)
	if err == nil {
		var calendar github.ContributionCalendar
		var languages []github.LanguageCount
		calendar, err = a.contributionCalendar(ctx, username, token)
		if err == nil {
			languages, err = a.source.TopLanguages(ctx, username, token)
		}
		if err == nil {
			snap := &Snapshot{
				Commits:           commits.Total,
				PullRequests:      prs.Total,
				Issues:            issues.Total,
				Repositories:      profile.PublicRepos,
				Followers:         profile.Followers,
				Following:         profile.Following,
				ContributionGraph: calendar,
				RecentActivity:    mergeTimeline(commits.Items, prs.Items, issues.Items),
				TopLanguages:      languages,
			}
			return a.finish(ctx, username, activityKey, snap)
		}
	}

	// Quota exhaustion discovered mid-flight degrades the same way the
	// gate does.
	var quotaErr *github.QuotaError
	if errors.As(err, &quotaErr) {
		if res := a.fallback(ctx, username); res != nil {
			RefreshTotal.WithLabelValues("stale_fallback").Inc()
			return res, nil
		}
	}
	RefreshTotal.WithLabelValues("error").Inc()
	return nil, &AggregationError{Username: username, Err: err}
}

// finish serializes the assembled snapshot and writes the activity tier
// before returning. The cache write is complete-or-nothing: a marshal
// failure writes nothing, and a store error still returns the snapshot.
func (a *Aggregator) finish(ctx context.Context, username, activityKey string, snap *Snapshot) (*Result, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		RefreshTotal.WithLabelValues("error").Inc()
		return nil, &AggregationError{Username: username, Err: err}
	}
	if err := a.cache.Set(ctx, activityKey, payload, cache.ActivityTTL); err != nil {
		log.Printf("Cache write failed for %s: %v", activityKey, err)
	}
	a.remember(username, payload)
	RefreshTotal.WithLabelValues("success").Inc()
	return &Result{Snapshot: snap, Payload: payload}, nil
}

// contributionCalendar applies cache-aside on the 24-hour tier,
// independent of the activity tier.
func (a *Aggregator) contributionCalendar(ctx context.Context, username, token string) (github.ContributionCalendar, error) {
	key := cache.ContributionsKey(username)

	payload, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		log.Printf("Cache read failed for %s: %v", key, err)
	}
	if ok {
		var cal github.ContributionCalendar
		if err := json.Unmarshal(payload, &cal); err != nil {
			log.Printf("Discarding undecodable cache entry %s: %v", key, err)
		} else {
			CacheRequests.WithLabelValues("contributions", "hit").Inc()
			return cal, nil
		}
	}
	CacheRequests.WithLabelValues("contributions", "miss").Inc()

	cal, err := a.source.ContributionCalendar(ctx, username, token)
	if err != nil {
		return github.ContributionCalendar{}, err
	}
	if payload, err := json.Marshal(cal); err == nil {
		if err := a.cache.Set(ctx, key, payload, cache.ContributionsTTL); err != nil {
			log.Printf("Cache write failed for %s: %v", key, err)
		}
	}
	return cal, nil
}

func (a *Aggregator) remember(username string, payload []byte) {
	a.mu.Lock()
	a.lastKnown[username] = payload
	a.mu.Unlock()
}

// fallback returns the last known snapshot for a user, preferring the
// in-process copy and falling back to the durable archive.
func (a *Aggregator) fallback(ctx context.Context, username string) *Result {
	a.mu.Lock()
	payload := a.lastKnown[username]
	a.mu.Unlock()

	if payload == nil && a.archive != nil {
		archived, err := a.archive(ctx, username)
		if err != nil {
			log.Printf("Archive lookup failed for %s: %v", username, err)
		} else {
			payload = archived
		}
	}
	if payload == nil {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		log.Printf("Discarding undecodable fallback snapshot for %s: %v", username, err)
		return nil
	}
	return &Result{Snapshot: &snap, Payload: payload, Stale: true}
}
