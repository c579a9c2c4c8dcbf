package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/swarmd/internal/config"
	"github.com/user/swarmd/internal/coordinator"
	"github.com/user/swarmd/internal/hook"
	"github.com/user/swarmd/internal/lock"
	"github.com/user/swarmd/internal/report"
	"github.com/user/swarmd/internal/state"
	"github.com/user/swarmd/internal/types"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "swarmd",
	Short:         "File-backed job coordination and monitoring for agent swarms",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath,
		"config", filepath.Join(os.Getenv("HOME"), ".swarmd", "config.json"), "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// Expected contention outcomes (nothing to claim, issue already
		// taken, already completed) exit 1; genuine faults exit 2.
		if coordinator.IsExpectedOutcome(err) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// stores opens the three shared-state structures under the state root.
func stores(cfg *config.Config) (*state.JobStore, *state.EventLog, *state.AgentTableFile) {
	return state.NewJobStore(cfg.StateDir), state.NewEventLog(cfg.StateDir), state.NewAgentTable(cfg.StateDir)
}

func newCoordinator(cfg *config.Config) (*coordinator.Coordinator, *hook.Ingestor) {
	jobs, events, agents := stores(cfg)
	locker := lock.NewFileLocker(cfg.StateDir, cfg.LockTimeout())
	return coordinator.New(jobs, events, locker), hook.NewIngestor(events, agents)
}

func newReporter(cfg *config.Config) (*report.Reporter, *state.EventLog, *state.AgentTableFile) {
	jobs, events, agents := stores(cfg)
	return report.New(jobs, events, agents), events, agents
}

// agentIdentity resolves who is calling: config wins, then the
// SWARMD_AGENT_ID / AGENT_ID environment, then the hostname.
func agentIdentity(cfg *config.Config) types.AgentID {
	if cfg.Agent.ID != "" {
		return types.AgentID(cfg.Agent.ID)
	}
	return types.AgentIDFromEnv()
}

func thresholds(cfg *config.Config) report.Thresholds {
	return report.Thresholds{
		StaleAfter:    cfg.StaleThreshold(),
		StuckAfter:    cfg.StuckAfter(),
		ActivityFloor: cfg.Daemon.StuckActivityFloor,
		FailureLimit:  cfg.Daemon.TestFailureLimit,
	}
}
