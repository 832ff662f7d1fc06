package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/notify"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
	"github.com/dparkhill/frontdesk/pkg/frontdesk/store"
)

// chatTestNumber is the synthetic caller used by the local REPL so chat
// sessions and captured leads are distinguishable from real traffic.
const chatTestNumber = "+10000000000"

// newChatCmd creates the `frontdesk chat` command for local conversations.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the receptionist from the terminal",
		Long: `Runs the same conversation engine the SMS webhook uses, against a
local test session. Pass a message for a single exchange or no arguments
for an interactive session.

Examples:
  frontdesk chat "my water heater is leaking"
  frontdesk chat`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.API.APIKey == "" {
		return fmt.Errorf("no API key configured; run 'frontdesk config set-key api_key'")
	}

	// Chat output goes to the terminal; keep logs quiet unless -v.
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st, err := store.Open(store.Config{Path: cfg.Database.Path})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	twilio := notify.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger)
	sheets := notify.NewSheetsClient(cfg.Sheets.SpreadsheetID, cfg.Sheets.AccessToken, logger)
	webhook := notify.NewWebhookClient(cfg.Webhook.URL, logger)

	llm := receptionist.NewLLMClient(cfg, logger)
	exec := receptionist.NewToolExecutor(logger)
	tools := receptionist.NewTools(st, twilio, sheets, webhook, cfg.Business.OwnerPhone, logger)
	tools.RegisterAll(exec)
	sessions := receptionist.NewSessionStore(cfg.Sessions.TTL, cfg.Instructions, logger)
	engine := receptionist.NewEngine(sessions, llm, exec, tools, logger)

	ctx := context.Background()

	// Single exchange.
	if len(args) > 0 {
		reply, err := engine.ProcessMessage(ctx, chatTestNumber, args[0], false)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	// Interactive session.
	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("Chatting with %s's receptionist. Ctrl+D to exit.\n", cfg.Business.Name)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		reply, err := engine.ProcessMessage(ctx, chatTestNumber, line, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("frontdesk> %s\n", reply)
	}
}
