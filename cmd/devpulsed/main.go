package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/devpulse-io/devpulse/pkg/aggregate"
	"github.com/devpulse-io/devpulse/pkg/cache"
	"github.com/devpulse-io/devpulse/pkg/github"
	"github.com/devpulse-io/devpulse/pkg/notify"
	"github.com/devpulse-io/devpulse/pkg/poller"
	"github.com/devpulse-io/devpulse/pkg/ratebudget"
	"github.com/devpulse-io/devpulse/pkg/store"
)

const archiveRetentionDays = 30

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("devpulsed: %v", err)
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("devpulsed: open store: %v", err)
	}
	defer st.Close()
	log.Printf("store ready at %s", cfg.DBPath)

	var (
		activityCache cache.Cache
		bus           notify.Pubsub
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("devpulsed: redis %s unreachable: %v", cfg.RedisAddr, err)
		}
		activityCache = cache.NewRedis(rdb)
		bus = notify.NewRedis(rdb)
		log.Printf("using redis at %s for cache and pubsub", cfg.RedisAddr)
	} else {
		activityCache = cache.NewMemory()
		bus = notify.NewMemory()
		log.Printf("no redis configured, using in-memory cache and pubsub")
	}
	defer bus.Close()

	tracker := ratebudget.NewTracker()
	gh := github.NewClient(cfg.GitHubBaseURL, tracker)

	agg := aggregate.NewAggregator(gh, activityCache, tracker)
	agg.SetFetchTimeout(cfg.FetchTimeout)
	agg.SetArchive(func(ctx context.Context, username string) ([]byte, error) {
		snap, err := st.LatestSnapshot(ctx, username)
		if err != nil || snap == nil {
			return nil, err
		}
		return snap.Payload, nil
	})

	notifier := notify.NewNotifier(bus)
	p := poller.NewPoller(st, agg, notifier, cfg.PollInterval)
	p.SetArchiver(st)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	pollerDone := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(pollerDone)
	}()
	log.Printf("polling every %s", cfg.PollInterval)

	go pruneLoop(ctx, st)

	select {
	case <-ctx.Done():
		log.Printf("shutdown signal received")
	case err := <-errCh:
		log.Printf("http server failed: %v", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	<-pollerDone
	log.Printf("shutdown complete")
}

// pruneLoop trims the snapshot archive once a day. Only the latest
// snapshot per user matters for the stale fallback, so old rows are pure
// disk growth.
func pruneLoop(ctx context.Context, st *store.Store) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.PruneSnapshots(ctx, time.Now().AddDate(0, 0, -archiveRetentionDays))
			if err != nil {
				log.Printf("Snapshot prune failed: %v", err)
			} else if n > 0 {
				log.Printf("Pruned %d archived snapshots", n)
			}
		}
	}
}
