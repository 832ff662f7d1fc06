package commands

import (
	"os"

	"github.com/spf13/cobra"
)

// newCompletionCmd creates the `frontdesk completion` command that generates
// shell completion scripts for bash, zsh, fish, and powershell.
func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell auto-completion scripts for frontdesk.

To load completions:

Bash:
  $ source <(frontdesk completion bash)
  # To load completions for each session, add to ~/.bashrc:
  echo 'source <(frontdesk completion bash)' >> ~/.bashrc

Zsh:
  $ source <(frontdesk completion zsh)
  # To load completions for each session, add to ~/.zshrc:
  echo 'source <(frontdesk completion zsh)' >> ~/.zshrc

Fish:
  $ frontdesk completion fish | source
  # To load completions for each session:
  frontdesk completion fish > ~/.config/fish/completions/frontdesk.fish

PowerShell:
  PS> frontdesk completion powershell | Out-String | Invoke-Expression
  # To load completions for each session, add to your profile:
  frontdesk completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(os.Stdout, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
	return cmd
}
