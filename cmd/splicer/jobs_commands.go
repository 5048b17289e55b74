package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"splicer/internal/daemon"
	"splicer/internal/deps"
	"splicer/internal/preflight"
	"splicer/internal/queue"
)

type jobOutcome struct {
	ID      int64  `json:"id"`
	Outcome string `json:"outcome"`
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"queue"},
		Short:   "Inspect and manage queued jobs",
	}
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsShowCommand(ctx))
	cmd.AddCommand(newJobsRetryCommand(ctx))
	cmd.AddCommand(newJobsRemoveCommand(ctx))
	cmd.AddCommand(newJobsCancelCommand(ctx))
	cmd.AddCommand(newJobsStatsCommand(ctx))
	cmd.AddCommand(newJobsHealthCommand(ctx))
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var types, states []string
	var artifact string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in enqueue order",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.Filter{ArtifactID: strings.TrimSpace(artifact), Limit: limit}
			for _, v := range types {
				typ, ok := queue.ParseType(v)
				if !ok {
					return fmt.Errorf("unknown job type %q", v)
				}
				filter.Types = append(filter.Types, typ)
			}
			for _, v := range states {
				state, ok := queue.ParseState(v)
				if !ok {
					return fmt.Errorf("unknown job state %q", v)
				}
				filter.States = append(filter.States, state)
			}
			return ctx.withComponents(func(c *daemon.Components) error {
				jobs, err := c.Store.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if jobs == nil {
						jobs = []*queue.Job{}
					}
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderJobTable(jobs))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Filter by job type (transcode, transcribe, transfer)")
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by state (waiting, active, completed, failed)")
	cmd.Flags().StringVar(&artifact, "artifact", "", "Filter by artifact id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum jobs to show (0 for all)")
	return cmd
}

func renderJobTable(jobs []*queue.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			string(job.Type),
			titleLabel(string(job.State)),
			formatPercent(job.Progress),
			fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
			orDash(job.ArtifactID),
			formatTimestamp(job.UpdatedAt),
		})
	}
	return renderTable(
		[]string{"ID", "Type", "State", "Progress", "Attempts", "Artifact", "Updated"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withComponents(func(c *daemon.Components) error {
				job, err := c.Store.Get(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", ids[0])
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job %d (%s)\n", job.ID, job.Type)
				fmt.Fprintf(out, "  State:      %s\n", titleLabel(string(job.State)))
				fmt.Fprintf(out, "  Progress:   %s\n", formatPercent(job.Progress))
				fmt.Fprintf(out, "  Attempts:   %d/%d\n", job.Attempts, job.MaxAttempts)
				fmt.Fprintf(out, "  Artifact:   %s\n", orDash(job.ArtifactID))
				fmt.Fprintf(out, "  Run at:     %s\n", formatTimestamp(job.RunAt))
				fmt.Fprintf(out, "  Cancelling: %s\n", yesNo(job.CancelRequested))
				if job.Error != "" {
					fmt.Fprintf(out, "  Error:      %s (%s)\n", job.Error, titleLabel(job.ErrorKind))
				}
				fmt.Fprintf(out, "  Payload:    %s\n", string(job.Payload))
				if len(job.Result) > 0 {
					fmt.Fprintf(out, "  Result:     %s\n", string(job.Result))
				}
				return nil
			})
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed jobs back to waiting (all failed jobs when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withComponents(func(c *daemon.Components) error {
				if len(ids) == 0 {
					n, err := c.Store.Retry(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed job(s)\n", n)
					return nil
				}
				outcomes := make([]jobOutcome, 0, len(ids))
				for _, id := range ids {
					outcome := "retried"
					n, err := c.Store.Retry(cmd.Context(), id)
					if err != nil {
						return err
					}
					if n == 0 {
						job, err := c.Store.Get(cmd.Context(), id)
						if err != nil {
							return err
						}
						outcome = "not_failed"
						if job == nil {
							outcome = "not_found"
						}
					}
					outcomes = append(outcomes, jobOutcome{ID: id, Outcome: outcome})
				}
				return printOutcomes(ctx, cmd, outcomes)
			})
		},
	}
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id...>",
		Short: "Delete waiting jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withComponents(func(c *daemon.Components) error {
				outcomes := make([]jobOutcome, 0, len(ids))
				for _, id := range ids {
					err := c.Store.Remove(cmd.Context(), id)
					outcome := "removed"
					switch {
					case err == nil:
					case errors.Is(err, queue.ErrJobNotFound):
						outcome = "not_found"
					case errors.Is(err, queue.ErrNotRemovable):
						outcome = "not_waiting"
					default:
						return err
					}
					outcomes = append(outcomes, jobOutcome{ID: id, Outcome: outcome})
				}
				return printOutcomes(ctx, cmd, outcomes)
			})
		},
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id...>",
		Short: "Ask the owning worker to stop active jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseJobIDs(args)
			if err != nil {
				return err
			}
			return ctx.withComponents(func(c *daemon.Components) error {
				outcomes := make([]jobOutcome, 0, len(ids))
				for _, id := range ids {
					err := c.Store.RequestCancel(cmd.Context(), id)
					outcome := "cancel_requested"
					switch {
					case err == nil:
					case errors.Is(err, queue.ErrJobNotFound):
						outcome = "not_found"
					case errors.Is(err, queue.ErrNotActive):
						outcome = "not_active"
					default:
						return err
					}
					outcomes = append(outcomes, jobOutcome{ID: id, Outcome: outcome})
				}
				return printOutcomes(ctx, cmd, outcomes)
			})
		},
	}
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts by type and state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(func(c *daemon.Components) error {
				stats, err := c.Store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				headers := []string{"Type"}
				aligns := []columnAlignment{alignLeft}
				for _, state := range queue.AllStates() {
					headers = append(headers, titleLabel(string(state)))
					aligns = append(aligns, alignRight)
				}
				rows := make([][]string, 0, len(stats))
				for _, typ := range queue.AllTypes() {
					row := []string{string(typ)}
					for _, state := range queue.AllStates() {
						row = append(row, strconv.Itoa(stats[typ][state]))
					}
					rows = append(rows, row)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
}

type healthReport struct {
	Database     queue.DatabaseHealth `json:"database"`
	Dependencies []deps.Status        `json:"dependencies"`
	Filesystem   []preflight.Result   `json:"filesystem"`
}

func newJobsHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the queue database, required binaries, and working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(func(c *daemon.Components) error {
				report := healthReport{
					Database:     c.Store.CheckHealth(cmd.Context()),
					Dependencies: deps.CheckSystemDeps(c.Config),
					Filesystem:   preflight.RunAll(c.Config),
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderSectionHeader("Queue database", colorize))
				db := report.Database
				dbKind, dbMsg := statusOK, fmt.Sprintf("%s (schema v%d)", db.DBPath, db.SchemaVersion)
				if db.Error != "" || !db.TableExists {
					dbKind, dbMsg = statusError, orDash(db.Error)
				}
				fmt.Fprintln(out, renderStatusLine("Database", dbKind, dbMsg, colorize))

				fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
				for _, dep := range report.Dependencies {
					kind, msg := statusOK, dep.Path
					if !dep.Available {
						kind, msg = statusError, dep.Detail
						if dep.Optional {
							kind = statusWarn
						}
					}
					fmt.Fprintln(out, renderStatusLine(dep.Name, kind, msg, colorize))
				}
				fmt.Fprintln(out, renderSectionHeader("Filesystem", colorize))
				for _, r := range report.Filesystem {
					kind := statusOK
					if !r.Passed {
						kind = statusWarn
					}
					fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
				}
				if missing := deps.MissingRequired(report.Dependencies); len(missing) > 0 {
					return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
				}
				return nil
			})
		},
	}
}

func printOutcomes(ctx *commandContext, cmd *cobra.Command, outcomes []jobOutcome) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, outcomes)
	}
	out := cmd.OutOrStdout()
	for _, o := range outcomes {
		fmt.Fprintf(out, "Job %d: %s\n", o.ID, titleLabel(o.Outcome))
	}
	return nil
}

func parseJobIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
