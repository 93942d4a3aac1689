package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"github.com/thebtf/chatlens/internal/db/gorm"
	"github.com/thebtf/chatlens/internal/motif"
	"github.com/thebtf/chatlens/internal/render"
	"github.com/thebtf/chatlens/pkg/models"
)

func newMotifsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "motifs",
		Short: "Build and inspect the cross-session motif index",
	}
	cmd.AddCommand(newMotifsBuildCmd())
	cmd.AddCommand(newMotifsListCmd())
	return cmd
}

func newMotifsBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Count action fingerprints across every session and replace the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := gorm.NewStore(gorm.Config{Path: catalogPath, LogLevel: logger.Silent})
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer store.Close()

			sessions, err := store.LoadSessions(ctx, gorm.SessionFilter{})
			if err != nil {
				return fmt.Errorf("load sessions: %w", err)
			}

			renderer := render.New(newMatcher(), nil, nil, render.Options{})
			agg := motif.NewAggregator()
			for _, s := range sessions {
				var blocks []models.RenderedAction
				for _, tb := range renderer.Actions(s) {
					blocks = append(blocks, tb.Blocks...)
				}
				agg.Add(s.ID, blocks)
			}

			entries := agg.Entries()
			if err := store.ReplaceMotifIndex(ctx, entries); err != nil {
				return fmt.Errorf("replace motif index: %w", err)
			}
			failures, err := recordRepeatFailures(ctx, store, sessions)
			if err != nil {
				return err
			}
			log.Info().Int("sessions", len(sessions)).Int("fingerprints", len(entries)).Int("repeat_failures", failures).
				Msg("Motif index rebuilt")
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d fingerprints from %d sessions\n", len(entries), len(sessions))
			return nil
		},
	}
}

func newMotifsListCmd() *cobra.Command {
	var (
		top      int
		families bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the most frequent cross-session fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.LoadMotifIndex(cmd.Context())
			if err != nil {
				return fmt.Errorf("load motif index: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Motif index is empty. Run `chatlens motifs build` first.")
				return nil
			}

			ranked := motif.RankEntries(entries)
			if top > 0 && len(ranked) > top {
				ranked = ranked[:top]
			}
			for _, e := range ranked {
				fmt.Fprintf(out, "%d× in %d sessions — %s\n", e.Occurrences, len(e.Sessions), e.Fingerprint)
			}

			if families {
				fmt.Fprintln(out)
				for _, group := range motif.EntryFamilies(entries, cfg.SimilarityThreshold) {
					if len(group) > 1 {
						fmt.Fprintf(out, "family: %s\n", strings.Join(group, " | "))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 20, "number of fingerprints to print; 0 prints all")
	cmd.Flags().BoolVar(&families, "families", false, "also print fingerprint families grouped by similarity")
	return cmd
}
