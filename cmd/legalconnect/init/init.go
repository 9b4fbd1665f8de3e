// Package initcmder provides the init command for initializing a local
// .legalconnect directory in the current working directory.
package initcmder

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/javajedis/legalconnect-ai/pkg/config"
)

const (
	dirName = ".legalconnect"
)

const initLongDesc string = `Initialize a new .legalconnect/ directory in the current working directory.

Creates a local .legalconnect/ directory that takes precedence over the
default ~/.legalconnect/ directory for configuration, session state, the
local vector index, and other legalconnect operations.

This is useful for maintaining a separate document corpus per project or
directory.

Pass --preset to also write a config.toml preconfigured for a provider:
  gemini    Gemini embeddings and generation (requires an API key)
  ollama    Local Ollama embeddings and generation

A preset may also be an http(s) URL pointing at a config.toml, useful for
sharing a team configuration.

Examples:
  legalconnect init
  legalconnect init --preset ollama
  legalconnect init --preset https://example.com/legalconnect/config.toml`

const initShortDesc string = "Initialize a local .legalconnect/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Write a preset config (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	alreadyExists := err == nil && info.IsDir()

	if !alreadyExists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .legalconnect directory: %w", err)
		}
	}

	if preset != "" {
		cfg, err := resolvePreset(preset)
		if err != nil {
			return err
		}

		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
	}

	if alreadyExists {
		fmt.Printf("Already initialized: %s\n", dir)
	} else {
		fmt.Printf("Initialized .legalconnect directory: %s\n", dir)
	}
	if preset != "" {
		fmt.Printf("Wrote %s preset config to %s\n", preset, filepath.Join(dir, "config.toml"))
	}

	return nil
}

// resolvePreset maps a preset name to a config, fetching a remote
// config.toml when the preset is an http(s) URL.
func resolvePreset(preset string) (*config.Config, error) {
	if strings.HasPrefix(preset, "http://") || strings.HasPrefix(preset, "https://") {
		return fetchRemoteConfig(preset)
	}
	return config.PresetConfig(preset)
}

func fetchRemoteConfig(url string) (*config.Config, error) {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing remote config: %w", err)
	}

	return cfg, nil
}
