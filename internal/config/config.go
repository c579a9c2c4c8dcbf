package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	StateDir string `json:"state_dir"`
	LogLevel string `json:"log_level"`
	Agent    struct {
		ID   string `json:"id"`
		Tier string `json:"tier"`
	} `json:"agent"`
	Lock struct {
		TimeoutSeconds int `json:"timeout_seconds"`
	} `json:"lock"`
	Hook struct {
		TimeoutMillis int   `json:"timeout_millis"`
		MaxInFlight   int64 `json:"max_in_flight"`
	} `json:"hook"`
	Daemon struct {
		EnableStaleCheck      bool   `json:"enable_stale_check"`
		StaleCheckInterval    int    `json:"stale_check_interval"`
		StaleLogInterval      int    `json:"stale_log_interval"`
		StaleThresholdMinutes int    `json:"stale_threshold_minutes"`
		PatternSweepSchedule  string `json:"pattern_sweep_schedule"`
		PatternRewarnMinutes  int    `json:"pattern_rewarn_minutes"`
		StuckAfterMinutes     int    `json:"stuck_after_minutes"`
		StuckActivityFloor    int    `json:"stuck_activity_floor"`
		TestFailureLimit      int    `json:"test_failure_limit"`
	} `json:"daemon"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		StateDir: filepath.Join(os.Getenv("HOME"), ".swarmd"),
		LogLevel: "info",
	}
	cfg.Agent.Tier = "tier2"
	cfg.Lock.TimeoutSeconds = 10
	cfg.Hook.TimeoutMillis = 200
	cfg.Hook.MaxInFlight = 16
	cfg.Daemon.EnableStaleCheck = false
	cfg.Daemon.StaleCheckInterval = 5
	cfg.Daemon.StaleLogInterval = 300
	cfg.Daemon.StaleThresholdMinutes = 5
	cfg.Daemon.PatternSweepSchedule = "@every 1m"
	cfg.Daemon.PatternRewarnMinutes = 30
	cfg.Daemon.StuckAfterMinutes = 60
	cfg.Daemon.StuckActivityFloor = 2
	cfg.Daemon.TestFailureLimit = 3

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if dir := os.Getenv("SWARMD_STATE_DIR"); dir != "" {
		cfg.StateDir = dir
	}
	if id := os.Getenv("SWARMD_AGENT_ID"); id != "" {
		cfg.Agent.ID = id
	}
	if tier := os.Getenv("SWARMD_AGENT_TIER"); tier != "" {
		cfg.Agent.Tier = tier
	}

	return cfg, nil
}

// Duration accessors so callers don't re-derive units from the raw ints.

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Lock.TimeoutSeconds) * time.Second
}

func (c *Config) HookTimeout() time.Duration {
	return time.Duration(c.Hook.TimeoutMillis) * time.Millisecond
}

func (c *Config) StaleCheckInterval() time.Duration {
	return time.Duration(c.Daemon.StaleCheckInterval) * time.Second
}

func (c *Config) StaleLogInterval() time.Duration {
	return time.Duration(c.Daemon.StaleLogInterval) * time.Second
}

func (c *Config) StaleThreshold() time.Duration {
	return time.Duration(c.Daemon.StaleThresholdMinutes) * time.Minute
}

func (c *Config) PatternRewarnWindow() time.Duration {
	return time.Duration(c.Daemon.PatternRewarnMinutes) * time.Minute
}

func (c *Config) StuckAfter() time.Duration {
	return time.Duration(c.Daemon.StuckAfterMinutes) * time.Minute
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
