// Package searchcmder provides the search command for similarity search
// over the indexed corpus.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/javajedis/legalconnect-ai/cmd/legalconnect/stack"
	"github.com/javajedis/legalconnect-ai/pkg/cliui"
	"github.com/javajedis/legalconnect-ai/pkg/config"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/pipeline"
	"github.com/javajedis/legalconnect-ai/pkg/utils"
)

const searchLongDesc string = `Search indexed documents by similarity.

The query is embedded and matched against stored document chunks. Results
are ranked by cosine similarity and returned with a snippet of the matched
text. No answer is generated.

Examples:
  legalconnect search "termination notice period"
  legalconnect search --type statute "company registration"
  legalconnect search --json -k 20 "grounds for divorce"`

const searchShortDesc string = "Search indexed documents by similarity"

var (
	rankStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	scoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

type cmder struct {
	topK      uint
	threshold float64
	docType   string
	jsonOut   bool
	debug     bool
	configDir string
}

func NewSearchCmd() *cobra.Command {
	c := &cmder{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.debug, _ = cmd.Flags().GetBool("debug")
			c.configDir, _ = cmd.Flags().GetString("config-dir")
			return c.run(cmd.Context(), args[0])
		},
	}

	cmd.Flags().UintVarP(&c.topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().Float64Var(&c.threshold, "threshold", 0, "minimum similarity score (default from config)")
	cmd.Flags().StringVarP(&c.docType, "type", "t", "", "restrict results to one document type")
	cmd.Flags().BoolVar(&c.jsonOut, "json", false, "emit results as JSON")

	return cmd
}

func (c *cmder) run(ctx context.Context, query string) error {
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

	var resp *pipeline.SearchResponse
	err = cliui.Step(os.Stdout, "Searching", func() error {
		var searchErr error
		resp, searchErr = st.Pipeline.SearchDocuments(ctx, pipeline.SearchRequest{
			Query:          query,
			TopK:           int(c.topK),
			ScoreThreshold: float32(c.threshold),
			DocumentType:   c.docType,
		})
		return searchErr
	})
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Results)
	}

	if resp.Degraded {
		fmt.Printf("\n  %s %s\n\n", cliui.WarnStyle.Render("degraded:"), resp.Reason)
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No matches."))
		return nil
	}

	fmt.Println()
	for i, res := range resp.Results {
		fmt.Printf("  %s %s %s\n",
			rankStyle.Render(fmt.Sprintf("%2d.", i+1)),
			cliui.NameStyle.Render(res.DocumentName),
			scoreStyle.Render(fmt.Sprintf("%.3f", res.Score)),
		)
		if res.PageNumber > 0 {
			fmt.Printf("      %s\n", cliui.DimStyle.Render(fmt.Sprintf("page %d", res.PageNumber)))
		}
		fmt.Printf("      %s\n\n", utils.Truncate(res.Snippet, 200))
	}

	return nil
}
