// devpulse-mcp exposes the tracked-user registry and cached activity
// snapshots to MCP clients over stdio.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/devpulse-io/devpulse/pkg/cache"
	"github.com/devpulse-io/devpulse/pkg/mcp"
	"github.com/devpulse-io/devpulse/pkg/store"
)

func main() {
	dbPath := os.Getenv("DEVPULSE_DB_PATH")
	if dbPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatalf("devpulse-mcp: %v", err)
		}
		dbPath = filepath.Join(cwd, "devpulse.db")
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		log.Fatalf("devpulse-mcp: open store: %v", err)
	}
	defer st.Close()

	var c cache.Cache = cache.NewMemory()
	if addr := os.Getenv("DEVPULSE_REDIS_ADDR"); addr != "" {
		c = cache.NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
	}

	if err := mcp.NewServer(st, c).Serve(); err != nil {
		log.Fatalf("devpulse-mcp: %v", err)
	}
}
