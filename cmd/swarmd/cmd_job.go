package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/swarmd/internal/coordinator"
	"github.com/user/swarmd/internal/hook"
	"github.com/user/swarmd/internal/types"
)

func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(jobCreateCmd, jobClaimCmd, jobClaimIssueCmd, jobCompleteCmd, jobShowCmd, jobListCmd)

	jobCreateCmd.Flags().String("title", "", "job title (required)")
	jobCreateCmd.Flags().String("description", "", "longer description")
	jobCreateCmd.Flags().String("priority", "medium", "low, medium, high, or urgent")
	jobCreateCmd.Flags().String("complexity", "moderate", "simple, moderate, or complex")
	jobCreateCmd.Flags().String("issue", "", "external issue reference")
	jobCreateCmd.Flags().StringSlice("depends-on", nil, "job ids that must be done first")
	_ = jobCreateCmd.MarkFlagRequired("title")

	jobClaimCmd.Flags().String("tier", "", "agent capability tier (default from config)")

	jobClaimIssueCmd.Flags().String("title", "", "job title (defaults to the issue reference)")
	jobClaimIssueCmd.Flags().String("description", "", "longer description")
	jobClaimIssueCmd.Flags().String("priority", "medium", "low, medium, high, or urgent")
	jobClaimIssueCmd.Flags().String("complexity", "moderate", "simple, moderate, or complex")

	jobCompleteCmd.Flags().String("result", "", "completion result (required)")
	jobCompleteCmd.Flags().Bool("force", false, "complete a job claimed by another agent")
	_ = jobCompleteCmd.MarkFlagRequired("result")

	jobListCmd.Flags().String("state", "pending", "pending, active, or done")
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Create, claim, and complete jobs",
}

func createParams(cmd *cobra.Command, createdBy types.AgentID) (coordinator.CreateParams, error) {
	priorityFlag, _ := cmd.Flags().GetString("priority")
	complexityFlag, _ := cmd.Flags().GetString("complexity")

	priority, err := types.ParsePriority(priorityFlag)
	if err != nil {
		return coordinator.CreateParams{}, err
	}
	complexity, err := types.ParseComplexity(complexityFlag)
	if err != nil {
		return coordinator.CreateParams{}, err
	}

	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	return coordinator.CreateParams{
		Title:       title,
		Description: description,
		Priority:    priority,
		Complexity:  complexity,
		CreatedBy:   createdBy,
	}, nil
}

var jobCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new pending job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		coord, _ := newCoordinator(cfg)

		params, err := createParams(cmd, agentIdentity(cfg))
		if err != nil {
			return err
		}
		params.Issue, _ = cmd.Flags().GetString("issue")
		deps, _ := cmd.Flags().GetStringSlice("depends-on")
		for _, dep := range deps {
			params.DependsOn = append(params.DependsOn, types.JobID(dep))
		}

		job, err := coord.CreateJob(cmd.Context(), params)
		if err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Job created: %s (%s/%s, recommended %s)\n",
			job.ID, job.Priority, job.Complexity, job.RecommendedModel)
		return nil
	},
}

var jobClaimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim the best eligible pending job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		coord, ingestor := newCoordinator(cfg)

		tierFlag, _ := cmd.Flags().GetString("tier")
		if tierFlag == "" {
			tierFlag = cfg.Agent.Tier
		}
		tier, err := types.ParseTier(tierFlag)
		if err != nil {
			return err
		}

		agentID := agentIdentity(cfg)
		job, err := coord.ClaimBest(cmd.Context(), agentID, tier)
		if err != nil {
			return err
		}

		trackAgent(ingestor, agentID, types.EventJobClaimed, types.Payload{JobID: job.ID})

		fmt.Fprintf(os.Stdout, "Claimed job: %s\n", job.ID)
		fmt.Fprintf(os.Stdout, "Title: %s\n", job.Title)
		if job.Description != "" {
			fmt.Fprintf(os.Stdout, "Description: %s\n", job.Description)
		}
		return nil
	},
}

var jobClaimIssueCmd = &cobra.Command{
	Use:   "claim-issue <issue-ref>",
	Short: "Create and claim a job for an external issue in one step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		coord, ingestor := newCoordinator(cfg)

		agentID := agentIdentity(cfg)
		params, err := createParams(cmd, agentID)
		if err != nil {
			return err
		}
		if params.Title == "" {
			params.Title = "issue " + args[0]
		}

		job, err := coord.ClaimForIssue(cmd.Context(), args[0], agentID, params)
		if err != nil {
			return err
		}

		trackAgent(ingestor, agentID, types.EventJobClaimed, types.Payload{JobID: job.ID, Issue: args[0]})

		fmt.Fprintf(os.Stdout, "Claimed job %s for issue %s\n", job.ID, args[0])
		return nil
	},
}

var jobCompleteCmd = &cobra.Command{
	Use:   "complete <job-id>",
	Short: "Mark an active job as done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		coord, ingestor := newCoordinator(cfg)

		result, _ := cmd.Flags().GetString("result")
		force, _ := cmd.Flags().GetBool("force")

		agentID := agentIdentity(cfg)
		job, err := coord.Complete(cmd.Context(), types.JobID(args[0]), agentID, result, force)
		if err != nil {
			return err
		}

		trackAgent(ingestor, agentID, types.EventJobCompleted, types.Payload{JobID: job.ID})

		fmt.Fprintf(os.Stdout, "Job completed: %s\n", job.ID)
		return nil
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		jobs, _, _ := stores(cfg)

		job, collection, err := jobs.Read(types.JobID(args[0]))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "ID:\t%s\n", job.ID)
		fmt.Fprintf(w, "State:\t%s\n", collection)
		fmt.Fprintf(w, "Title:\t%s\n", job.Title)
		fmt.Fprintf(w, "Priority:\t%s\n", job.Priority)
		fmt.Fprintf(w, "Complexity:\t%s\n", job.Complexity)
		fmt.Fprintf(w, "Recommended:\t%s\n", job.RecommendedModel)
		fmt.Fprintf(w, "Created:\t%s by %s\n", job.Created.Format("2006-01-02 15:04:05"), job.CreatedBy)
		if job.Issue != "" {
			fmt.Fprintf(w, "Issue:\t%s\n", job.Issue)
		}
		if len(job.DependsOn) > 0 {
			fmt.Fprintf(w, "Depends on:\t%v\n", job.DependsOn)
		}
		if job.ClaimedAt != nil {
			fmt.Fprintf(w, "Claimed:\t%s by %s\n", job.ClaimedAt.Format("2006-01-02 15:04:05"), job.ClaimedBy)
		}
		if job.CompletedAt != nil {
			fmt.Fprintf(w, "Completed:\t%s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "Result:\t%s\n", job.Result)
		}
		return w.Flush()
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs in one collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		reporter, _, _ := newReporter(cfg)

		stateFlag, _ := cmd.Flags().GetString("state")
		queue, err := reporter.Queue(types.Collection(stateFlag))
		if err != nil {
			return err
		}

		if len(queue.Jobs) == 0 {
			fmt.Printf("No %s jobs.\n", stateFlag)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPRIORITY\tCOMPLEXITY\tCLAIMED BY\tTITLE")
		for _, job := range queue.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				job.ID, job.Priority, job.Complexity, job.ClaimedBy, job.Title)
		}
		return w.Flush()
	},
}

// trackAgent refreshes the caller's agent-table entry after a successful
// claim/complete. Best effort: the table is an observability aid, so a
// failed update is logged, never surfaced.
func trackAgent(ingestor *hook.Ingestor, agentID types.AgentID, eventType string, payload types.Payload) {
	if err := ingestor.Track(agentID, eventType, payload.Encode()); err != nil {
		slog.Warn("agent table update failed", "error", err)
	}
}
