// Package summarycmder provides the summary command for generating
// document summaries from the indexed corpus.
package summarycmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javajedis/legalconnect-ai/cmd/legalconnect/stack"
	"github.com/javajedis/legalconnect-ai/pkg/cliui"
	"github.com/javajedis/legalconnect-ai/pkg/config"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/pipeline"
)

const summaryLongDesc string = `Summarize indexed documents on a topic.

The topic is embedded and matched against stored document chunks, and the
best matches are condensed into a short summary. Use --document to limit
the summary to a single ingested document.

Examples:
  legalconnect summary "bail provisions"
  legalconnect summary --document 4f2c1b "employment contract"
  legalconnect summary -k 12 "grounds for divorce"`

const summaryShortDesc string = "Summarize indexed documents on a topic"

type cmder struct {
	docID     string
	topK      uint
	debug     bool
	configDir string
}

func NewSummaryCmd() *cobra.Command {
	c := &cmder{}

	cmd := &cobra.Command{
		Use:   "summary <topic>",
		Short: summaryShortDesc,
		Long:  summaryLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.debug, _ = cmd.Flags().GetBool("debug")
			c.configDir, _ = cmd.Flags().GetString("config-dir")
			return c.run(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVarP(&c.docID, "document", "d", "", "restrict the summary to one document ID")
	cmd.Flags().UintVarP(&c.topK, "top-k", "k", 0, "number of chunks to summarize (default from config)")

	return cmd
}

func (c *cmder) run(ctx context.Context, topic string) error {
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

	var resp *pipeline.SummarizeResponse
	err = cliui.Step(os.Stdout, "Summarizing", func() error {
		var sumErr error
		resp, sumErr = st.Pipeline.SummarizeDocuments(ctx, pipeline.SummarizeRequest{
			Query:      topic,
			DocumentID: c.docID,
			TopK:       int(c.topK),
		})
		return sumErr
	})
	if err != nil {
		return err
	}

	if resp.Degraded {
		fmt.Printf("\n  %s %s\n\n", cliui.WarnStyle.Render("degraded:"), resp.Reason)
		return nil
	}

	rendered, err := cliui.RenderMarkdown(resp.Summary)
	if err != nil {
		fmt.Printf("\n%s\n", resp.Summary)
	} else {
		fmt.Print(rendered)
	}
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("summarized %d chunks", resp.Chunks)))

	return nil
}
