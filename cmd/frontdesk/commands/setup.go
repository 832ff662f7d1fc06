package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dparkhill/frontdesk/pkg/frontdesk/receptionist"
)

// newSetupCmd creates the `frontdesk setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create your initial config.yaml.
Asks for the business name, trade, owner phone and API credentials.
API keys are stored in the OS keyring — never in plaintext.

Examples:
  frontdesk setup`,
		RunE: runSetup,
	}
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg := receptionist.DefaultConfig()

	var apiKey string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Business name").
				Description("Used in prompts and owner notifications.").
				Placeholder("Apex Plumbing").
				Validate(required("business name")).
				Value(&cfg.Business.Name),
			huh.NewInput().
				Title("Trade").
				Description("The line of work, e.g. \"plumbing and electrical\".").
				Placeholder("plumbing").
				Validate(required("trade")).
				Value(&cfg.Business.Trade),
			huh.NewInput().
				Title("Service area").
				Placeholder("Denver metro").
				Value(&cfg.Business.ServiceArea),
			huh.NewInput().
				Title("Owner phone (E.164)").
				Description("Receives escalation and new-lead texts.").
				Placeholder("+13035550100").
				Validate(validPhone).
				Value(&cfg.Business.OwnerPhone),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Value(&cfg.API.BaseURL),
			huh.NewInput().
				Title("API key").
				Description("Stored in the OS keyring, not in config.yaml.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewSelect[string]().
				Title("Synthesized voice").
				Options(
					huh.NewOption("alloy", "alloy"),
					huh.NewOption("echo", "echo"),
					huh.NewOption("shimmer", "shimmer"),
					huh.NewOption("verse", "verse"),
				).
				Value(&cfg.Voice),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable background agents?").
				Description("Market scanning, outreach and lead nurture.").
				Value(&cfg.Agents.Enabled),
			huh.NewInput().
				Title("Gateway public host").
				Description("Externally reachable host for telephony webhooks. Leave empty to configure later.").
				Placeholder("frontdesk.example.com").
				Value(&cfg.Gateway.PublicHost),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	// Store the key out of band; the file only ever carries a placeholder.
	if apiKey != "" {
		if err := receptionist.StoreKeyring("api_key", apiKey); err != nil {
			fmt.Println("Could not reach the OS keyring; set FRONTDESK_API_KEY in the environment instead.")
		} else {
			fmt.Println("API key stored in the OS keyring.")
		}
	}
	cfg.API.APIKey = ""

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	path := "config.yaml"
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Println()
	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("Next steps:")
	fmt.Println("  frontdesk config set-key twilio_account_sid")
	fmt.Println("  frontdesk config set-key twilio_auth_token")
	fmt.Println("  frontdesk serve")
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// validPhone accepts an empty value (configurable later) or an E.164-ish
// number.
func validPhone(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "+") || len(s) < 11 {
		return fmt.Errorf("use E.164 format, e.g. +13035550100")
	}
	return nil
}
