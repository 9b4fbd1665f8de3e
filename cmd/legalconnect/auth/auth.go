// Package authcmder provides the auth command for managing provider API keys.
package authcmder

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/javajedis/legalconnect-ai/pkg/cliui"
	"github.com/javajedis/legalconnect-ai/pkg/credentials"
)

const authLongDesc string = `Manage API keys for LLM and embedding providers.

Keys are stored in credentials.toml in the .legalconnect/ directory with
0600 permissions. Environment variables (e.g. GEMINI_API_KEY) always take
precedence over stored keys.

Examples:
  legalconnect auth gemini             Store an API key for gemini
  legalconnect auth --list             List providers with stored keys
  legalconnect auth --remove gemini    Remove the stored key for gemini`

const authShortDesc string = "Manage provider API keys"

type cmder struct {
	list      bool
	remove    string
	configDir string
}

func NewAuthCmd() *cobra.Command {
	c := &cmder{}

	cmd := &cobra.Command{
		Use:   "auth [provider]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.configDir, _ = cmd.Flags().GetString("config-dir")

			if c.list {
				return c.runList()
			}
			if c.remove != "" {
				return c.runRemove()
			}
			if len(args) == 0 {
				return fmt.Errorf("provider required\n\nSupported providers: %s",
					strings.Join(credentials.SupportedProviders(), ", "))
			}
			return c.run(args[0])
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.SupportedProviders(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVarP(&c.list, "list", "l", false, "list providers with stored keys")
	cmd.Flags().StringVarP(&c.remove, "remove", "r", "", "remove the stored key for a provider")

	return cmd
}

func (c *cmder) run(provider string) error {
	provider = strings.ToLower(provider)
	if !credentials.IsSupportedProvider(provider) {
		return fmt.Errorf("unsupported provider: %q\n\nSupported providers: %s",
			provider, strings.Join(credentials.SupportedProviders(), ", "))
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("opening credentials store: %w", err)
	}

	key, err := readAPIKey(provider)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("no API key entered")
	}

	if err := mgr.SetKey(provider, key); err != nil {
		return fmt.Errorf("storing key: %w", err)
	}

	fmt.Printf("\n  %s Stored API key for %s\n",
		cliui.SuccessMark, cliui.NameStyle.Render(provider))
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render(mgr.GetTarget()))

	if envVar := credentials.EnvVarForProvider(provider); envVar != "" {
		if os.Getenv(envVar) != "" {
			fmt.Printf("  %s %s is set and takes precedence over the stored key\n\n",
				cliui.WarnStyle.Render("note:"), envVar)
		}
	}

	return nil
}

func (c *cmder) runList() error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("opening credentials store: %w", err)
	}

	providers, err := mgr.ListProviders()
	if err != nil {
		return fmt.Errorf("listing providers: %w", err)
	}

	if len(providers) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No stored API keys."))
		return nil
	}

	fmt.Printf("\n  %s\n\n", cliui.HeaderStyle.Render("Stored API keys"))
	for _, p := range providers {
		fmt.Printf("  %s %s\n", cliui.SuccessMark, cliui.NameStyle.Render(p))
	}
	fmt.Println()

	return nil
}

func (c *cmder) runRemove() error {
	provider := strings.ToLower(c.remove)

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("opening credentials store: %w", err)
	}

	if err := mgr.RemoveKey(provider); err != nil {
		return fmt.Errorf("removing key: %w", err)
	}

	fmt.Printf("\n  %s Removed API key for %s\n\n",
		cliui.SuccessMark, cliui.NameStyle.Render(provider))
	return nil
}

// readAPIKey reads a key from stdin, hiding input when attached to a terminal.
func readAPIKey(provider string) (string, error) {
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		fmt.Printf("\n  Enter API key for %s: ", cliui.NameStyle.Render(provider))
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading key: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	// Piped input, e.g. `echo $KEY | legalconnect auth gemini`.
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
