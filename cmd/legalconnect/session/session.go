// Package sessioncmder provides the session command for managing the
// active chat session and its uploaded documents.
package sessioncmder

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
	"github.com/javajedis/legalconnect-ai/pkg/dotdir"
	"github.com/javajedis/legalconnect-ai/pkg/ingest"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
)

const sessionLongDesc string = `Manage the active chat session.

A session scopes uploaded documents and conversation history. When a
session has uploads, 'legalconnect ask' retrieves from them alongside the
general corpus and carries the conversation history into the prompt.

Session state lives in session.json in the .legalconnect/ directory.

Subcommands:
  legalconnect session show             Show the active session
  legalconnect session upload <file>    Upload a document into the session
  legalconnect session clear            Clear the session and its uploads`

const sessionShortDesc string = "Manage the active chat session"

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: sessionShortDesc,
		Long:  sessionLongDesc,
	}

	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newClearCmd())

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runShow(configDir)
		},
	}
}

func runShow(configDir string) error {
	state, err := dotdir.NewManager().LoadSessionState(configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	if state == nil {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No active session."))
		return nil
	}

	fmt.Printf("\n  %s %s\n",
		cliui.KeyStyle.Render("Session:"), cliui.ValueStyle.Render(state.SessionID))
	fmt.Printf("  %s %d\n",
		cliui.KeyStyle.Render("Messages:"), len(state.Messages))

	if len(state.Documents) == 0 {
		fmt.Printf("  %s %s\n\n",
			cliui.KeyStyle.Render("Documents:"), cliui.DimStyle.Render("none"))
		return nil
	}

	fmt.Printf("  %s\n", cliui.KeyStyle.Render("Documents:"))
	for _, doc := range state.Documents {
		name := doc.Name
		if name == "" {
			name = doc.DocumentID
		}
		fmt.Printf("    • %s %s\n",
			cliui.NameStyle.Render(name),
			cliui.DimStyle.Render(fmt.Sprintf("(%d chunks)", len(doc.VectorIDs))),
		)
	}
	fmt.Println()

	return nil
}

type uploadCmder struct {
	docName   string
	debug     bool
	configDir string
}

func newUploadCmd() *cobra.Command {
	c := &uploadCmder{}

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document into the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.debug, _ = cmd.Flags().GetBool("debug")
			c.configDir, _ = cmd.Flags().GetString("config-dir")
			return c.run(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVarP(&c.docName, "name", "n", "", "document name (defaults to the file name)")

	return cmd
}

func (c *uploadCmder) run(ctx context.Context, path string) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ddm := dotdir.NewManager()
	state, err := ddm.LoadSessionState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if state == nil {
		state = &dotdir.SessionState{SessionID: uuid.NewString()}
		fmt.Printf("\n  %s Started session %s\n",
			cliui.SuccessMark, cliui.DimStyle.Render(state.SessionID))
	}

	st, err := stack.Build(ctx, cfg, c.configDir, log)
	if err != nil {
		return err
	}
	defer st.Close()

	name := c.docName
	if name == "" {
		name = filepath.Base(path)
	}

	doc := ingest.Document{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      ingest.TypeChatUpload,
		SessionID: state.SessionID,
		Pages:     splitPages(string(raw)),
	}

	var res ingest.Result
	err = cliui.Step(os.Stdout, fmt.Sprintf("Uploading %s", cliui.NameStyle.Render(name)), func() error {
		var ingestErr error
		res, ingestErr = st.Processor.Ingest(ctx, doc)
		return ingestErr
	})
	if err != nil {
		return err
	}

	state.Documents = append(state.Documents, dotdir.SessionDocument{
		DocumentID: res.DocumentID,
		Name:       name,
		VectorIDs:  res.VectorIDs,
	})
	if err := ddm.SaveSession(state, c.configDir); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	fmt.Printf("    %s %d chunks", cliui.KeyStyle.Render("stored:"), res.Chunks)
	if res.ZeroVectors > 0 {
		fmt.Printf("  %s", cliui.WarnStyle.Render(fmt.Sprintf("(%d embedding failures)", res.ZeroVectors)))
	}
	fmt.Print("\n\n")

	return nil
}

type clearCmder struct {
	keepVectors bool
	debug       bool
	configDir   string
}

func newClearCmd() *cobra.Command {
	c := &clearCmder{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the session and its uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.debug, _ = cmd.Flags().GetBool("debug")
			c.configDir, _ = cmd.Flags().GetString("config-dir")
			return c.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&c.keepVectors, "keep-vectors", false, "leave uploaded chunks in the vector store")

	return cmd
}

func (c *clearCmder) run(ctx context.Context) error {
	ddm := dotdir.NewManager()
	state, err := ddm.LoadSessionState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if state == nil {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No active session."))
		return nil
	}

	if !c.keepVectors && state.HasDocuments() {
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

		var ids []string
		for _, doc := range state.Documents {
			ids = append(ids, doc.VectorIDs...)
		}
		if len(ids) > 0 {
			err = cliui.Step(os.Stdout, "Removing uploaded chunks", func() error {
				return st.Processor.Delete(ctx, ids)
			})
			if err != nil {
				return err
			}
		}
	}

	if err := ddm.ClearSession(c.configDir); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	fmt.Printf("\n  %s Cleared session %s\n\n",
		cliui.SuccessMark, cliui.DimStyle.Render(state.SessionID))
	return nil
}

// splitPages splits document text on form feeds, matching the page
// separator convention used by text extractors. Text without form feeds
// becomes a single page.
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
