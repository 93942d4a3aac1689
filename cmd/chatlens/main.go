// Package main provides the chatlens command line entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/chatlens/internal/config"
	"github.com/thebtf/chatlens/internal/matcher"
	"github.com/thebtf/chatlens/internal/workspace"
)

// Version is set at build time via ldflags.
var Version = "dev"

// globals are resolved in PersistentPreRunE and shared by every command.
var (
	cfg         *config.Config
	catalogPath string
	debug       bool
)

var rootCmd = &cobra.Command{
	Use:           "chatlens",
	Short:         "Render, compress and recall exported chat sessions",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if !debug {
			if level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
				zerolog.SetGlobalLevel(level)
			}
		}
		if catalogPath == "" {
			catalogPath = cfg.CatalogPath
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&debug, "debug", false, "enable debug logging")
	flags.StringVar(&catalogPath, "catalog", "", "catalog database path (default: ~/.chatlens/catalog.db)")

	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newRecallCmd())
	rootCmd.AddCommand(newMotifsCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newServeCmd())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "chatlens: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging sends logs to stderr since stdout carries command output.
func setupLogging() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
}

func newMatcher() *matcher.Matcher {
	return matcher.New(nil, matcher.Options{NoiseKinds: cfg.NoiseKinds, RedactKeys: cfg.RedactKeys})
}

func loadWorkspaces() *workspace.Registry {
	registry, err := workspace.LoadRegistry(cfg.WorkspacesFile)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.WorkspacesFile).Msg("Failed to load workspace registry, continuing without it")
		return workspace.NewRegistry()
	}
	return registry
}
