// Package daemon runs the long-lived monitoring process. It is purely an
// observer: it re-reads the same on-disk structures the coordinator
// writes, emits detection events, and never participates in the write
// path. Claiming and completion keep working when the daemon is down.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/user/swarmd/internal/config"
)

// State is the daemon lifecycle phase.
type State int32

const (
	Initializing State = iota
	Running
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting-down"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Daemon drives the poll cycle: a fine-grained stale-agent scan on a
// ticker, and a coarser pattern sweep scheduled through cron (default
// "@every 1m"). Detector failures are logged and the loop continues.
type Daemon struct {
	cfg       *config.Config
	detectors *Detectors
	state     atomic.Int32
}

// New creates a daemon with the given detectors.
func New(cfg *config.Config, detectors *Detectors) *Daemon {
	return &Daemon{cfg: cfg, detectors: detectors}
}

// State returns the current lifecycle phase.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// PIDPath returns the daemon's well-known PID file location.
func PIDPath(stateDir string) string {
	return filepath.Join(stateDir, "swarmd.pid")
}

// Run executes the daemon until the context is cancelled: write the PID
// file, start the poll loops, and on shutdown finish the in-flight cycle
// and remove the PID file.
func (d *Daemon) Run(ctx context.Context) error {
	d.state.Store(int32(Initializing))

	if err := os.MkdirAll(d.cfg.StateDir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	pidPath := PIDPath(d.cfg.StateDir)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	defer func() {
		os.Remove(pidPath)
		d.state.Store(int32(Stopped))
		slog.Info("daemon stopped")
	}()

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(d.cfg.Daemon.PatternSweepSchedule, func() {
		if n, err := d.detectors.SweepPatterns(time.Now().UTC()); err != nil {
			slog.Error("pattern sweep failed", "error", err)
		} else if n > 0 {
			slog.Info("pattern sweep flagged jobs", "events", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule pattern sweep %q: %w", d.cfg.Daemon.PatternSweepSchedule, err)
	}
	sweeper.Start()

	d.state.Store(int32(Running))
	slog.Info("daemon running",
		"state_dir", d.cfg.StateDir,
		"stale_check", d.cfg.Daemon.EnableStaleCheck,
		"stale_check_interval", d.cfg.StaleCheckInterval(),
		"stale_threshold", d.cfg.StaleThreshold(),
		"pattern_sweep", d.cfg.Daemon.PatternSweepSchedule,
		"pid_file", pidPath,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(d.cfg.StaleCheckInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if !d.cfg.Daemon.EnableStaleCheck {
					continue
				}
				warned, err := d.detectors.CheckStale(time.Now().UTC())
				if err != nil {
					slog.Error("stale check failed", "error", err)
					continue
				}
				for _, id := range warned {
					slog.Warn("agent went stale", "agent", id)
				}
			}
		}
	})

	err := g.Wait()
	d.state.Store(int32(ShuttingDown))
	slog.Info("daemon shutting down")

	// Let an in-flight sweep finish before returning.
	<-sweeper.Stop().Done()
	return err
}
