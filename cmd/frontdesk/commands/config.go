package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
)

// newConfigCmd creates the `frontdesk config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration",
		Long: `Manage the FrontDesk configuration and stored credentials.

Examples:
  frontdesk config init
  frontdesk config show
  frontdesk config set-key api_key`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
	)
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := "config.yaml"
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			data, err := yaml.Marshal(receptionist.DefaultConfig())
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			fmt.Printf("Configuration written to %s\n", abs)
			fmt.Println("Edit it and run 'frontdesk config set-key api_key' to store credentials.")
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			// Never print resolved credentials.
			redact := func(s string) string {
				if s == "" {
					return ""
				}
				return "••••"
			}
			cfg.API.APIKey = redact(cfg.API.APIKey)
			cfg.Twilio.AuthToken = redact(cfg.Twilio.AuthToken)
			cfg.Email.APIKey = redact(cfg.Email.APIKey)
			cfg.Sheets.AccessToken = redact(cfg.Sheets.AccessToken)
			cfg.Gateway.AuthToken = redact(cfg.Gateway.AuthToken)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <name>",
		Short: "Store a credential in the OS keyring",
		Long: `Prompts for a secret with hidden input and stores it in the OS
keyring. Valid names: api_key, twilio_account_sid, twilio_auth_token,
email_api_key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			switch name {
			case "api_key", "twilio_account_sid", "twilio_auth_token", "email_api_key":
			default:
				return fmt.Errorf("unknown credential name %q", name)
			}
			if !receptionist.KeyringAvailable() {
				return fmt.Errorf("OS keyring is not available; use environment variables instead")
			}
			value, err := receptionist.PromptSecret("Value for " + name)
			if err != nil {
				return fmt.Errorf("reading secret: %w", err)
			}
			if value == "" {
				return fmt.Errorf("empty value, nothing stored")
			}
			if err := receptionist.StoreKeyring(name, value); err != nil {
				return fmt.Errorf("storing %s: %w", name, err)
			}
			fmt.Printf("%s stored in the OS keyring.\n", name)
			return nil
		},
	}
}
