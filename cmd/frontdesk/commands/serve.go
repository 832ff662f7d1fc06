package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/agents"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/gateway"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/notify"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// newServeCmd creates the `frontdesk serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the receptionist daemon",
		Long: `Start FrontDesk as a daemon: the HTTP gateway for voice and SMS
webhooks, the session sweeper, and the background agent scheduler.

Examples:
  frontdesk serve
  frontdesk serve --no-agents
  frontdesk serve --config ./config.yaml`,
		RunE: runServe,
	}

	cmd.Flags().Bool("no-agents", false, "disable the background agent scheduler")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	logger := buildLogger(cmd, cfg)

	// ── Open the database ──
	st, err := store.Open(store.Config{Path: cfg.Database.Path})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Side-effect clients ──
	twilio := notify.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger)
	email := notify.NewEmailClient(cfg.Email.APIKey, cfg.Email.From, logger)
	sheets := notify.NewSheetsClient(cfg.Sheets.SpreadsheetID, cfg.Sheets.AccessToken, logger)
	webhook := notify.NewWebhookClient(cfg.Webhook.URL, logger)

	// ── Conversation engine ──
	llm := receptionist.NewLLMClient(cfg, logger)
	exec := receptionist.NewToolExecutor(logger)
	tools := receptionist.NewTools(st, twilio, sheets, webhook, cfg.Business.OwnerPhone, logger)
	tools.RegisterAll(exec)

	sessions := receptionist.NewSessionStore(cfg.Sessions.TTL, cfg.Instructions, logger)
	sessions.StartSweeper(ctx, cfg.Sessions.SweepInterval)

	engine := receptionist.NewEngine(sessions, llm, exec, tools, logger)

	// ── Background agents ──
	var scheduler *agents.Scheduler
	noAgents, _ := cmd.Flags().GetBool("no-agents")
	if cfg.Agents.Enabled && !noAgents {
		agentList := []agents.Agent{
			agents.NewMarketScanner(st, llm, cfg, logger),
			agents.NewEmailOutreach(st, llm, email, cfg, logger),
			agents.NewSMSOutreach(st, llm, twilio, cfg, logger),
			agents.NewColdCaller(st, llm, twilio, cfg, logger),
			agents.NewLeadNurture(st, llm, twilio, cfg, logger),
		}
		scheduler = agents.NewScheduler(agentList, st, cfg.Agents.PauseBetween, cfg.Agents.QuotaCooldown, logger)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
	}

	// ── Gateway ──
	gw := gateway.New(cfg, engine, exec, sessions, st, scheduler, logger)
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}

	// ── Wait for shutdown ──
	logger.Info("FrontDesk running. Press Ctrl+C to stop.",
		"business", cfg.Business.Name,
		"address", cfg.Gateway.Address,
		"agents", scheduler != nil,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	// Graceful shutdown with timeout.
	done := make(chan struct{})
	go func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		_ = gw.Stop(shutdownCtx)
		if scheduler != nil {
			scheduler.Stop()
		}
		cancel()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// buildLogger creates the slog logger from config and the --verbose flag.
func buildLogger(cmd *cobra.Command, cfg *receptionist.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}

// resolveConfig loads config from the --config flag or the default search
// path, falling back to defaults when no file exists.
func resolveConfig(cmd *cobra.Command) (*receptionist.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if configPath == "" {
		configPath = receptionist.DefaultConfigPath()
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			cfg, err := receptionist.LoadConfigFromFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
			}
			return cfg, nil
		}
	}

	fmt.Println()
	fmt.Println("No configuration file found; starting with defaults.")
	fmt.Println("Run 'frontdesk setup' to create a config.yaml.")
	fmt.Println()
	cfg := receptionist.DefaultConfig()
	receptionist.ResolveSecrets(cfg)
	return cfg, nil
}
