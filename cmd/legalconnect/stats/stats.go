// Package statscmder provides the stats command for inspecting the
// vector store.
package statscmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javajedis/legalconnect-ai/cmd/legalconnect/stack"
	"github.com/javajedis/legalconnect-ai/pkg/cliui"
	"github.com/javajedis/legalconnect-ai/pkg/config"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/vector"
)

const statsLongDesc string = `Show vector store statistics.

Connects to the configured vector store and reports the number of stored
chunks, the index dimensions, and the backend's health status.

Examples:
  legalconnect stats`

const statsShortDesc string = "Show vector store statistics"

type cmder struct {
	debug     bool
	configDir string
}

func NewStatsCmd() *cobra.Command {
	c := &cmder{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.debug, _ = cmd.Flags().GetBool("debug")
			c.configDir, _ = cmd.Flags().GetString("config-dir")
			return c.run(cmd.Context())
		},
	}

	return cmd
}

func (c *cmder) run(ctx context.Context) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := stack.Build(ctx, cfg, c.configDir, log)
	if err != nil {
		return err
	}
	defer st.Close()

	var stats vector.Stats
	err = cliui.Step(os.Stdout, "Fetching index stats", func() error {
		var statsErr error
		stats, statsErr = st.Driver.Stats(ctx)
		return statsErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s\n\n", cliui.HeaderStyle.Render("Vector store"))
	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("Provider:  "), cliui.ValueStyle.Render(cfg.VectorStore.Provider))
	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("Collection:"), cliui.ValueStyle.Render(cfg.VectorStore.Collection))
	fmt.Printf("  %s %d\n",
		cliui.KeyStyle.Render("Points:    "), stats.Points)
	fmt.Printf("  %s %d\n",
		cliui.KeyStyle.Render("Dimensions:"), stats.Dimensions)
	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Status:    "), stats.Status)

	return nil
}
