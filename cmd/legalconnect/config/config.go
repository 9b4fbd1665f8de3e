// Package configcmder provides the config command for managing persistent
// legalconnect configuration stored in the .legalconnect/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent legalconnect configuration.

Configuration is stored as config.toml in the .legalconnect/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  llm.provider, llm.target, llm.model,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  vector_store.provider, vector_store.target, vector_store.collection,
  retrieval.top_k, retrieval.chat_threshold, retrieval.search_threshold,
  chunking.target_size, chunking.overlap

Use subcommands to get, set, or list configuration values:
  legalconnect config set <key> <value>    Set a configuration value
  legalconnect config get <key>            Get a configuration value
  legalconnect config list                 List all configuration values

Examples:
  legalconnect config set llm.provider ollama
  legalconnect config set embedding.model nomic-embed-text
  legalconnect config get retrieval.top_k
  legalconnect config list`

const configShortDesc string = "Manage persistent legalconnect configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
