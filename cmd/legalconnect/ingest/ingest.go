// Package ingestcmder provides the ingest command for indexing documents
// into the general corpus.
package ingestcmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/javajedis/legalconnect-ai/cmd/legalconnect/stack"
	"github.com/javajedis/legalconnect-ai/pkg/cliui"
	"github.com/javajedis/legalconnect-ai/pkg/config"
	"github.com/javajedis/legalconnect-ai/pkg/ingest"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
)

const ingestLongDesc string = `Index documents into the general corpus.

Each file is chunked, embedded, and stored in the configured vector store.
Files are read as plain text; pages are split on form feed characters when
present, otherwise the whole file is indexed as a single page.

Examples:
  legalconnect ingest contract.txt
  legalconnect ingest --type statute --name "Contract Act 1872" act-1872.txt
  legalconnect ingest docs/*.txt`

const ingestShortDesc string = "Index documents into the general corpus"

type cmder struct {
	docType   string
	docName   string
	docID     string
	debug     bool
	configDir string
}

func NewIngestCmd() *cobra.Command {
	c := &cmder{}

	cmd := &cobra.Command{
		Use:   "ingest <file> [file...]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.debug, _ = cmd.Flags().GetBool("debug")
			c.configDir, _ = cmd.Flags().GetString("config-dir")
			return c.run(cmd.Context(), args)
		},
	}

	cmd.Flags().StringVarP(&c.docType, "type", "t", "general", "document type (e.g. statute, case_law, contract)")
	cmd.Flags().StringVarP(&c.docName, "name", "n", "", "document name (defaults to the file name)")
	cmd.Flags().StringVar(&c.docID, "id", "", "document ID (defaults to a generated UUID, single file only)")

	return cmd
}

func (c *cmder) run(ctx context.Context, paths []string) error {
	if c.docID != "" && len(paths) > 1 {
		return fmt.Errorf("--id cannot be used with multiple files")
	}

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var st *stack.Stack
	err = cliui.Step(os.Stdout, "Connecting to vector store", func() error {
		var buildErr error
		st, buildErr = stack.Build(ctx, cfg, c.configDir, log)
		return buildErr
	})
	if err != nil {
		return err
	}
	defer st.Close()

	for _, path := range paths {
		if err := c.ingestFile(ctx, st, path); err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
	}

	fmt.Printf("\n  %s Indexed %d document(s)\n\n", cliui.SuccessMark, len(paths))
	return nil
}

func (c *cmder) ingestFile(ctx context.Context, st *stack.Stack, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := c.docName
	if name == "" {
		name = filepath.Base(path)
	}

	id := c.docID
	if id == "" {
		id = uuid.NewString()
	}

	doc := ingest.Document{
		ID:    id,
		Name:  name,
		Type:  c.docType,
		Pages: splitPages(string(raw)),
	}

	var res ingest.Result
	err = cliui.Step(os.Stdout, fmt.Sprintf("Indexing %s", cliui.NameStyle.Render(name)), func() error {
		var ingestErr error
		res, ingestErr = st.Processor.Ingest(ctx, doc)
		return ingestErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("    %s %s  %s %d chunks",
		cliui.KeyStyle.Render("id:"), cliui.DimStyle.Render(res.DocumentID),
		cliui.KeyStyle.Render("stored:"), res.Chunks,
	)
	if res.ZeroVectors > 0 {
		fmt.Printf("  %s", cliui.WarnStyle.Render(fmt.Sprintf("(%d embedding failures)", res.ZeroVectors)))
	}
	fmt.Println()

	return nil
}

// splitPages splits document text on form feeds, the page separator
// emitted by most text extractors. Text without form feeds becomes a
// single page.
func splitPages(text string) []ingest.Page {
	parts := strings.Split(text, "\f")
	pages := make([]ingest.Page, 0, len(parts))
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		pages = append(pages, ingest.Page{Number: i + 1, Text: part})
	}
	if len(pages) == 0 {
		pages = append(pages, ingest.Page{Number: 1, Text: text})
	}
	return pages
}
