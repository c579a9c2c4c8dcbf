package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/swarmd/internal/report"
	"github.com/user/swarmd/internal/types"
)

func init() {
	rootCmd.AddCommand(statusCmd, agentsCmd, queueCmd, metricsCmd, activityCmd,
		timelineCmd, bottlenecksCmd, compareCmd, cleanupCmd, logCmd)

	queueCmd.Flags().String("state", "", "show records for one collection")

	cleanupCmd.Flags().Duration("older-than", 24*time.Hour, "remove agents not seen for this long")
	cleanupCmd.Flags().Bool("dry-run", false, "report without removing")

	logCmd.Flags().Int("limit", 20, "number of events to show")
	logCmd.Flags().BoolP("follow", "f", false, "keep printing new events")
	logCmd.Flags().String("agent", "", "only show events from this agent")
}

func sortedActivity(activity map[types.JobID]*report.JobActivity) []*report.JobActivity {
	out := make([]*report.JobActivity, 0, len(activity))
	for _, a := range activity {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out
}

func fmtDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize agents and queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reporter, _, _ := newReporter(cfg)

		status, err := reporter.Status()
		if err != nil {
			return err
		}
		fmt.Printf("Agents: %d (%d working, %d idle)\n", status.Agents, status.Working, status.Idle)
		fmt.Printf("Jobs: %d pending, %d active, %d done\n", status.Pending, status.Active, status.Done)
		if status.Corrupt > 0 {
			fmt.Printf("Warning: %d corrupt job records\n", status.Corrupt)
		}
		return nil
	},
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents with heartbeat and elapsed time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reporter, _, _ := newReporter(cfg)

		agents, err := reporter.Agents(time.Now().UTC())
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			fmt.Println("No agents registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "AGENT\tSTATUS\tROLE\tMODEL\tJOB\tWORKING FOR\tLAST SEEN")
		for _, agent := range agents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s ago\n",
				agent.ID, agent.Status, agent.Role, agent.Model,
				agent.CurrentJobID, fmtDuration(agent.WorkingFor), fmtDuration(agent.HeartbeatAge))
		}
		return w.Flush()
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show queue counts, optionally one collection's records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reporter, _, _ := newReporter(cfg)

		stateFlag, _ := cmd.Flags().GetString("state")
		queue, err := reporter.Queue(types.Collection(stateFlag))
		if err != nil {
			return err
		}

		fmt.Printf("Pending: %d   Active: %d   Done: %d\n", queue.Pending, queue.Active, queue.Done)
		for _, rec := range queue.Corrupt {
			fmt.Printf("Corrupt record: %s (%s)\n", rec.ID, rec.Reason)
		}
		if stateFlag == "" {
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPRIORITY\tCLAIMED BY\tTITLE")
		for _, job := range queue.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", job.ID, job.Priority, job.ClaimedBy, job.Title)
		}
		return w.Flush()
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show average claim-to-done and claim-to-merge durations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reporter, _, _ := newReporter(cfg)

		metrics, err := reporter.Metrics()
		if err != nil {
			return err
		}
		fmt.Printf("Claimed: %d   Completed: %d   Merged: %d\n",
			metrics.ClaimedJobs, metrics.CompletedJobs, metrics.MergedJobs)
		fmt.Printf("Avg claim to done: %s\n", fmtDuration(metrics.AvgClaimToDone))
		fmt.Printf("Avg claim to merge: %s\n", fmtDuration(metrics.AvgClaimToMerge))
		return nil
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show per-job file, commit, and test-failure counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reporter, _, _ := newReporter(cfg)

		activity, err := reporter.Activity()
		if err != nil {
			return err
		}
		if len(activity) == 0 {
			fmt.Println("No activity recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JOB\tFILES\tCOMMITS\tTOOL CALLS\tTEST FAILURES\tLAST EVENT")
		for _, a := range sortedActivity(activity) {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
				a.JobID, a.Files, a.Commits, a.ToolCalls, a.TestFailures,
				a.LastEvent.Format("15:04:05"))
		}
		return w.Flush()
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <job-id>",
	Short: "Show the chronological events for one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reporter, _, _ := newReporter(cfg)

		timeline, err := reporter.Timeline(types.JobID(args[0]))
		if err != nil {
			return err
		}
		if len(timeline) == 0 {
			fmt.Printf("No events for job %s.\n", args[0])
			return nil
		}
		for _, event := range timeline {
			fmt.Printf("%s  %-20s %-22s %s\n",
				event.At.Format("2006-01-02 15:04:05"), event.AgentID, event.Type, event.Data)
		}
		return nil
	},
}

var bottlenecksCmd = &cobra.Command{
	Use:   "bottlenecks",
	Short: "Flag stale agents, failing jobs, and stuck jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reporter, _, _ := newReporter(cfg)

		b, err := reporter.Bottlenecks(time.Now().UTC(), thresholds(cfg))
		if err != nil {
			return err
		}
		if len(b.StaleAgents) == 0 && len(b.FailingJobs) == 0 && len(b.StuckJobs) == 0 {
			fmt.Println("No bottlenecks detected.")
			return nil
		}
		for _, agent := range b.StaleAgents {
			fmt.Printf("STALE AGENT  %s (last seen %s ago)\n", agent.ID, fmtDuration(agent.HeartbeatAge))
		}
		for _, flag := range b.FailingJobs {
			fmt.Printf("FAILING JOB  %s (%d test failures, claimed by %s)\n",
				flag.JobID, flag.TestFailures, flag.ClaimedBy)
		}
		for _, flag := range b.StuckJobs {
			fmt.Printf("STUCK JOB    %s (claimed %s ago, %d activity events, by %s)\n",
				flag.JobID, fmtDuration(flag.ClaimedFor), flag.Activity, flag.ClaimedBy)
		}
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare per-agent throughput",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reporter, _, _ := newReporter(cfg)

		stats, err := reporter.Compare()
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("No agent activity yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "AGENT\tCLAIMED\tCOMPLETED\tAVG DURATION")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", s.ID, s.Claimed, s.Completed, fmtDuration(s.AvgDuration))
		}
		return w.Flush()
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove agent entries with old heartbeats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		_, _, agents := newReporter(cfg)

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		removed, err := agents.Cleanup(olderThan, time.Now().UTC(), dryRun)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			fmt.Println("Nothing to clean up.")
			return nil
		}
		verb := "Removed"
		if dryRun {
			verb = "Would remove"
		}
		for _, id := range removed {
			fmt.Printf("%s agent %s\n", verb, id)
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Tail the event log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		_, events, _ := newReporter(cfg)

		limit, _ := cmd.Flags().GetInt("limit")
		follow, _ := cmd.Flags().GetBool("follow")
		agentFilter, _ := cmd.Flags().GetString("agent")

		printEvent := func(event *types.Event) {
			if agentFilter != "" && string(event.AgentID) != agentFilter {
				return
			}
			fmt.Printf("%s  %-20s %-22s %s\n",
				event.At.Format("2006-01-02 15:04:05"), event.AgentID, event.Type, event.Data)
		}

		tail, err := events.Tail(limit)
		if err != nil {
			return err
		}
		for _, event := range tail {
			printEvent(event)
		}

		if !follow {
			return nil
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		err = events.Follow(ctx, time.Second, printEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
