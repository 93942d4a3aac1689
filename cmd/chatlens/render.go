package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/chatlens/internal/db/gorm"
	"github.com/thebtf/chatlens/internal/lod"
	"github.com/thebtf/chatlens/internal/motif"
	"github.com/thebtf/chatlens/internal/recall"
	"github.com/thebtf/chatlens/internal/render"
)

func openCatalog() (*gorm.Store, error) {
	store, err := gorm.OpenReadOnly(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog not found at %s (%v); export chat history to a catalog first or pass --catalog",
			recall.ErrSourceUnavailable, catalogPath, err)
	}
	return store, nil
}

func newRenderCmd() *cobra.Command {
	var (
		raw    bool
		level  int
		stats  bool
		all    bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "render [session-id]...",
		Short: "Render sessions as markdown transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass session ids or --all")
			}
			if level != -1 && level != 0 {
				return errors.New("--lod only supports 0")
			}
			if stats && level != 0 {
				return errors.New("--stats requires --lod 0")
			}

			store, err := openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := cmd.Context()

			if all {
				if args, err = store.ListSessionIDs(ctx); err != nil {
					return err
				}
			}

			var index *motif.CrossSessionIndex
			if !raw {
				entries, err := store.LoadMotifIndex(ctx)
				if err != nil {
					log.Warn().Err(err).Msg("Failed to load motif index, rendering without cross-session markers")
				} else if len(entries) > 0 {
					index = motif.NewCrossSessionIndex(entries)
				}
			}
			renderer := render.New(newMatcher(), motif.NewAnnotator(cfg.SimilarityThreshold), index, render.Options{
				Raw:          raw,
				SequenceTopN: cfg.SequenceTopN,
				RepeatTopN:   cfg.RepeatTopN,
			})

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			var counter *lod.Counter
			if stats {
				if counter, err = lod.NewCounter(); err != nil {
					return fmt.Errorf("load tokenizer: %w", err)
				}
			}

			for i, id := range args {
				session, err := store.LoadSession(ctx, id)
				if err != nil {
					return fmt.Errorf("load session %s: %w", id, err)
				}
				if session == nil {
					return fmt.Errorf("session %q not found in %s", id, catalogPath)
				}
				if i > 0 {
					fmt.Fprintln(out)
				}

				if level == 0 {
					view := render.RenderLOD0(*session)
					if _, err := io.WriteString(out, view.Text); err != nil {
						return err
					}
					if counter != nil {
						s, err := counter.Measure(view.Before, view.After)
						if err != nil {
							return fmt.Errorf("measure savings: %w", err)
						}
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", id, s)
					}
					continue
				}

				if _, err := io.WriteString(out, renderer.Render(*session).Markdown); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&raw, "raw", false, "embed pruned raw payloads and keep noise events")
	flags.IntVar(&level, "lod", -1, "level of detail; 0 renders collapsed prose only")
	flags.BoolVar(&stats, "stats", false, "print byte and token savings of --lod 0 to stderr")
	flags.BoolVar(&all, "all", false, "render every session, newest first")
	flags.StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
