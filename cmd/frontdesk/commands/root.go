// Package commands implements the FrontDesk CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "frontdesk",
		Short: "FrontDesk - AI receptionist for service businesses",
		Long: `FrontDesk answers phone calls and text messages for a service
business, captures job leads, and runs background outreach agents.

Examples:
  frontdesk serve
  frontdesk chat "my water heater is leaking"
  frontdesk agent list
  frontdesk agent run market-scanner`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newAgentCmd(),
		newConfigCmd(),
		newSetupCmd(),
		newCompletionCmd(),
	)

	// Global flags.
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
