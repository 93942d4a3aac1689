package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/chatlens/internal/server"
	"github.com/thebtf/chatlens/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		port     int
		host     string
		cacheDir string
		noWatch  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recall and transcripts over HTTP with a warm index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = cfg.ServerPort
			}
			if cacheDir == "" {
				cacheDir = cfg.CacheDir
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("determine current directory: %w", err)
			}

			engine := newRecallEngine(cacheDir, false)
			defer func() {
				if err := engine.Metrics().Shutdown(context.Background()); err != nil {
					log.Debug().Err(err).Msg("Failed to stop recall metrics")
				}
			}()

			svc := server.New(server.Options{
				Version:    Version,
				Config:     cfg,
				Engine:     engine,
				Catalog:    server.CatalogReader{Path: catalogPath},
				Matcher:    newMatcher(),
				Workspaces: loadWorkspaces(),
				Root:       wd,
			})

			if !noWatch {
				startWatcher(ctx, svc)
			}
			return svc.Start(ctx, fmt.Sprintf("%s:%d", host, port))
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&port, "port", 0, "listen port (default: CHATLENS_SERVER_PORT or 37877)")
	flags.StringVar(&host, "host", "127.0.0.1", "listen address")
	flags.StringVar(&cacheDir, "cache-dir", "", "index cache directory (default: ~/.chatlens/cache)")
	flags.BoolVar(&noWatch, "no-watch", false, "do not refresh the index when the catalog changes")
	return cmd
}

// startWatcher refreshes the warm index whenever the catalog file settles
// after a write. The watcher stops with ctx.
func startWatcher(ctx context.Context, svc *server.Service) {
	w, err := watcher.New(catalogPath, 0, func() {
		svc.CatalogChanged(ctx)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create catalog watcher")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start catalog watcher")
		return
	}
	log.Info().Str("path", catalogPath).Msg("Watching catalog for changes")
	go func() {
		<-ctx.Done()
		_ = w.Stop()
	}()
}
