package main

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Addr != defaultAddr {
		t.Errorf("Addr: got %s, want %s", cfg.Addr, defaultAddr)
	}
	if cfg.PollInterval != defaultPollInterval {
		t.Errorf("PollInterval: got %s, want %s", cfg.PollInterval, defaultPollInterval)
	}
	if cfg.FetchTimeout != defaultFetchTimeout {
		t.Errorf("FetchTimeout: got %s, want %s", cfg.FetchTimeout, defaultFetchTimeout)
	}
	if !strings.HasSuffix(cfg.DBPath, "devpulse.db") {
		t.Errorf("Unexpected default DB path %s", cfg.DBPath)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("Expected empty redis addr by default, got %s", cfg.RedisAddr)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name:        "valid poll interval from flag",
			args:        []string{"-poll-interval", "5s"},
			expectError: false,
		},
		{
			name:        "zero poll interval from flag",
			args:        []string{"-poll-interval", "0s"},
			expectError: true,
			errorSubstr: "poll interval must be positive",
		},
		{
			name:        "invalid poll interval format from flag",
			args:        []string{"-poll-interval", "invalid"},
			expectError: true,
			errorSubstr: "invalid poll interval",
		},
		{
			name:        "valid poll interval from env",
			envVars:     map[string]string{"DEVPULSE_POLL_INTERVAL": "5s"},
			expectError: false,
		},
		{
			name:        "invalid poll interval from env",
			envVars:     map[string]string{"DEVPULSE_POLL_INTERVAL": "invalid"},
			expectError: true,
			errorSubstr: "invalid DEVPULSE_POLL_INTERVAL",
		},
		{
			name:        "negative fetch timeout",
			args:        []string{"-fetch-timeout", "-1s"},
			expectError: true,
			errorSubstr: "fetch timeout must be positive",
		},
		{
			name:        "empty addr",
			args:        []string{"-addr", ""},
			expectError: true,
			errorSubstr: "addr cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("DEVPULSE_POLL_INTERVAL", "1h")
	t.Setenv("DEVPULSE_REDIS_ADDR", "env-redis:6379")

	cfg, err := LoadConfig([]string{"-poll-interval", "2m", "-redis", "flag-redis:6379"})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.PollInterval != 2*time.Minute {
		t.Errorf("PollInterval: got %s, want 2m", cfg.PollInterval)
	}
	if cfg.RedisAddr != "flag-redis:6379" {
		t.Errorf("RedisAddr: got %s, want flag override", cfg.RedisAddr)
	}
}

func TestLoadConfig_PortEnv(t *testing.T) {
	t.Setenv("DEVPULSE_PORT", "9100")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9100" {
		t.Errorf("Addr: got %s, want 127.0.0.1:9100", cfg.Addr)
	}
}
