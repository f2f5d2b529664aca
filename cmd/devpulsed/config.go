package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAddr         = "127.0.0.1:8095"
	defaultPollInterval = 10 * time.Minute
	defaultFetchTimeout = 15 * time.Second
)

type Config struct {
	DBPath        string
	RedisAddr     string
	Addr          string
	PollInterval  time.Duration
	FetchTimeout  time.Duration
	GitHubBaseURL string
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "devpulse.db")

	dbPath := envOrDefault("DEVPULSE_DB_PATH", defaultDBPath)
	redisAddr := os.Getenv("DEVPULSE_REDIS_ADDR")
	addr := addrFromEnv(defaultAddr)
	githubBaseURL := os.Getenv("DEVPULSE_GITHUB_URL")

	pollInterval := defaultPollInterval
	if v := os.Getenv("DEVPULSE_POLL_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEVPULSE_POLL_INTERVAL: %w", err)
		}
		pollInterval = parsed
	}
	fetchTimeout := defaultFetchTimeout
	if v := os.Getenv("DEVPULSE_FETCH_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEVPULSE_FETCH_TIMEOUT: %w", err)
		}
		fetchTimeout = parsed
	}

	flagSet := flag.NewFlagSet("devpulsed", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagRedis := flagSet.String("redis", redisAddr, "redis address (empty for in-memory cache and pubsub)")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address for /metrics and /healthz")
	flagPollInterval := flagSet.String("poll-interval", pollInterval.String(), "activity poll interval")
	flagFetchTimeout := flagSet.String("fetch-timeout", fetchTimeout.String(), "upstream fan-out timeout")
	flagGitHub := flagSet.String("github-url", githubBaseURL, "GitHub API base URL override")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	pollIntervalParsed, err := time.ParseDuration(*flagPollInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid poll interval: %w", err)
	}
	fetchTimeoutParsed, err := time.ParseDuration(*flagFetchTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("invalid fetch timeout: %w", err)
	}

	config := Config{
		DBPath:        resolvePath(*flagDB, cwd),
		RedisAddr:     strings.TrimSpace(*flagRedis),
		Addr:          strings.TrimSpace(*flagAddr),
		PollInterval:  pollIntervalParsed,
		FetchTimeout:  fetchTimeoutParsed,
		GitHubBaseURL: strings.TrimSpace(*flagGitHub),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.PollInterval <= 0 {
		return Config{}, errors.New("poll interval must be positive")
	}
	if config.FetchTimeout <= 0 {
		return Config{}, errors.New("fetch timeout must be positive")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("DEVPULSE_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("DEVPULSE_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
