// Package legalconnectcmder provides the root legalconnect command.
package legalconnectcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/ask"
	authcmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/auth"
	configcmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/config"
	ingestcmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/ingest"
	initcmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/init"
	searchcmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/search"
	sessioncmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/session"
	statscmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/stats"
	summarycmder "github.com/javajedis/legalconnect-ai/cmd/legalconnect/summary"
	versioncmder "github.com/javajedis/legalconnect-ai/cmd/version"
)

const legalconnectLongDesc string = `LegalConnect is a legal research assistant for Bangladesh law.

Index legal documents and ask questions using:
  legalconnect ingest <files>   Index documents into the corpus
  legalconnect ask <question>   Ask a question over the corpus
  legalconnect search <query>   Semantic search over indexed documents`

const legalconnectShortDesc string = "LegalConnect - Legal document question answering"

func NewLegalConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legalconnect",
		Short: legalconnectShortDesc,
		Long:  legalconnectLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .legalconnect/ directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(summarycmder.NewSummaryCmd())
	cmd.AddCommand(sessioncmder.NewSessionCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
