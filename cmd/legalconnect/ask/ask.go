// Package askcmder provides the ask command for answering legal questions
// over the indexed corpus.
package askcmder

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
	"github.com/javajedis/legalconnect-ai/pkg/dotdir"
	"github.com/javajedis/legalconnect-ai/pkg/llm"
	"github.com/javajedis/legalconnect-ai/pkg/logger"
	"github.com/javajedis/legalconnect-ai/pkg/pipeline"
)

const askLongDesc string = `Answer a legal question over the indexed corpus.

The question is embedded, the most similar document chunks are retrieved
from the vector store, and an answer is generated grounded on them with
source citations. When a chat session with uploaded documents is active,
retrieval includes the session's uploads alongside the general corpus and
the conversation history is carried into the prompt.

Examples:
  legalconnect ask "What is the notice period for contract termination?"
  legalconnect ask -k 12 "Which act governs company registration?"
  legalconnect ask --json "What are the grounds for divorce?"`

const askShortDesc string = "Answer a legal question over the indexed corpus"

var (
	confidenceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	degradedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

type cmder struct {
	topK      uint
	threshold float64
	jsonOut   bool
	noSession bool
	debug     bool
	configDir string
}

func NewAskCmd() *cobra.Command {
	c := &cmder{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.debug, _ = cmd.Flags().GetBool("debug")
			c.configDir, _ = cmd.Flags().GetString("config-dir")
			return c.run(cmd.Context(), args[0])
		},
	}

	cmd.Flags().UintVarP(&c.topK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	cmd.Flags().Float64Var(&c.threshold, "threshold", 0, "minimum similarity score (default from config)")
	cmd.Flags().BoolVar(&c.jsonOut, "json", false, "emit the full response as JSON")
	cmd.Flags().BoolVar(&c.noSession, "no-session", false, "ignore the active chat session")

	return cmd
}

func (c *cmder) run(ctx context.Context, question string) error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ddm := dotdir.NewManager()
	var state *dotdir.SessionState
	if !c.noSession {
		state, err = ddm.LoadSessionState(c.configDir)
		if err != nil {
			return fmt.Errorf("loading session: %w", err)
		}
	}

	st, err := stack.Build(ctx, cfg, c.configDir, log)
	if err != nil {
		return err
	}
	defer st.Close()

	req := pipeline.AnswerRequest{
		Query:          question,
		TopK:           int(c.topK),
		ScoreThreshold: float32(c.threshold),
	}
	if state != nil {
		req.SessionID = state.SessionID
		req.History = sessionHistory(state)
	}

	var resp *pipeline.AnswerResponse
	err = cliui.Step(os.Stdout, "Thinking", func() error {
		var askErr error
		resp, askErr = st.Pipeline.AnswerQuery(ctx, req)
		return askErr
	})
	if err != nil {
		return err
	}

	if c.jsonOut {
		return printJSON(resp)
	}

	printAnswer(resp)

	if state != nil {
		state.Messages = append(state.Messages,
			dotdir.SessionMessage{Role: "user", Content: question},
			dotdir.SessionMessage{Role: "assistant", Content: resp.Answer.Text},
		)
		if err := ddm.SaveSession(state, c.configDir); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
	}

	return nil
}

// sessionHistory converts stored session messages into prompt history.
func sessionHistory(state *dotdir.SessionState) []llm.Message {
	history := make([]llm.Message, 0, len(state.Messages))
	for _, m := range state.Messages {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

func printAnswer(resp *pipeline.AnswerResponse) {
	ans := resp.Answer

	if ans.Degraded {
		fmt.Printf("\n  %s %s\n", degradedStyle.Render("degraded:"), ans.Reason)
	}

	rendered, err := cliui.RenderMarkdown(ans.Text)
	if err != nil {
		fmt.Printf("\n%s\n", ans.Text)
	} else {
		fmt.Print(rendered)
	}

	if len(ans.Sources) > 0 {
		fmt.Printf("  %s\n", cliui.HeaderStyle.Render("Sources"))
		for _, src := range ans.Sources {
			line := fmt.Sprintf("  • %s", cliui.NameStyle.Render(src.DocumentName))
			if src.PageNumber > 0 {
				line += cliui.DimStyle.Render(fmt.Sprintf(" p.%d", src.PageNumber))
			}
			line += cliui.DimStyle.Render(fmt.Sprintf(" (%.2f)", src.SimilarityScore))
			fmt.Println(line)
		}
	}

	meta := resp.Meta
	fmt.Printf("\n  %s confidence %s · %d chunks (%d session, %d general) · %s\n\n",
		cliui.DimStyle.Render("·"),
		confidenceStyle.Render(fmt.Sprintf("%.2f", ans.Confidence)),
		meta.RetrievalCount, meta.SessionCount, meta.GeneralCount,
		cliui.FormatDuration(meta.Elapsed),
	)
}

func printJSON(resp *pipeline.AnswerResponse) error {
	out := struct {
		Answer     string         `json:"answer"`
		Sources    any            `json:"sources"`
		Confidence float64        `json:"confidence"`
		Model      string         `json:"model,omitempty"`
		Degraded   bool           `json:"degraded,omitempty"`
		Reason     string         `json:"reason,omitempty"`
		Meta       map[string]any `json:"meta"`
	}{
		Answer:     resp.Answer.Text,
		Sources:    resp.Answer.Sources,
		Confidence: resp.Answer.Confidence,
		Model:      resp.Answer.Model,
		Degraded:   resp.Answer.Degraded,
		Reason:     resp.Answer.Reason,
		Meta: map[string]any{
			"retrieval_count": resp.Meta.RetrievalCount,
			"session_count":   resp.Meta.SessionCount,
			"general_count":   resp.Meta.GeneralCount,
			"avg_similarity":  resp.Meta.AvgSimilarity,
			"elapsed_ms":      resp.Meta.Elapsed.Milliseconds(),
		},
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
