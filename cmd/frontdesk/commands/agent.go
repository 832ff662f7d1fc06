package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/agents"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/notify"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// newAgentCmd creates the `frontdesk agent` command group.
func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect and run background agents",
		Long: `Inspect the background agents and their run history, or trigger
one immediately.

Examples:
  frontdesk agent list
  frontdesk agent runs
  frontdesk agent run market-scanner`,
	}

	cmd.AddCommand(
		newAgentListCmd(),
		newAgentRunsCmd(),
		newAgentRunCmd(),
	)
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents and their schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, scheduler, cleanup, err := buildScheduler(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tSCHEDULE\tLAST RUN\tSTATUS")
			for _, name := range scheduler.AgentNames() {
				last, err := st.LatestRun(name)
				if err != nil {
					return err
				}
				lastAt, status := "never", "-"
				if last != nil {
					lastAt = last.StartedAt.Format(time.RFC3339)
					status = last.Status
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, scheduleLabel(scheduler.AgentInterval(name)), lastAt, status)
			}
			return w.Flush()
		},
	}
}

func newAgentRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent agent run history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			st, _, cleanup, err := buildScheduler(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := st.ListRuns(limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tAGENT\tSTATUS\tRESULT")
			for _, run := range runs {
				detail := run.Result
				if run.Error != "" {
					detail = run.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					run.StartedAt.Format("2006-01-02 15:04:05"), run.Agent, run.Status, detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "number of runs to show")
	return cmd
}

func newAgentRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Run one agent immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, scheduler, cleanup, err := buildScheduler(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := scheduler.RunNow(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", args[0], result)
			return nil
		},
	}
}

// buildScheduler wires the full agent stack for one-shot CLI use. The
// returned cleanup closes the database.
func buildScheduler(cmd *cobra.Command) (*store.Store, *agents.Scheduler, func(), error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := buildLogger(cmd, cfg)

	st, err := store.Open(store.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	twilio := notify.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger)
	email := notify.NewEmailClient(cfg.Email.APIKey, cfg.Email.From, logger)
	llm := receptionist.NewLLMClient(cfg, logger)

	agentList := []agents.Agent{
		agents.NewMarketScanner(st, llm, cfg, logger),
		agents.NewEmailOutreach(st, llm, email, cfg, logger),
		agents.NewSMSOutreach(st, llm, twilio, cfg, logger),
		agents.NewColdCaller(st, llm, twilio, cfg, logger),
		agents.NewLeadNurture(st, llm, twilio, cfg, logger),
	}
	scheduler := agents.NewScheduler(agentList, st, cfg.Agents.PauseBetween, cfg.Agents.QuotaCooldown, logger)
	return st, scheduler, func() { st.Close() }, nil
}

func scheduleLabel(interval time.Duration) string {
	if interval <= 0 {
		return "manual"
	}
	return "every " + interval.String()
}
