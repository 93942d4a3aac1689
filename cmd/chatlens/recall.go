package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/chatlens/internal/documents"
	"github.com/thebtf/chatlens/internal/recall"
	"github.com/thebtf/chatlens/internal/workspace"
)

func newRecallEngine(cacheDir string, noCache bool) *recall.Engine {
	source := recall.NewCatalogSource(catalogPath, documents.DefaultManager(newMatcher(), documents.DefaultOptions()))
	metrics, err := recall.NewMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to register recall metrics")
	}
	return recall.NewEngine(source, recall.Options{
		Cache:        recall.NewFileCache(cacheDir),
		Metrics:      metrics,
		DisableCache: noCache,
	})
}

func newRecallCmd() *cobra.Command {
	var (
		limit         int
		agent         string
		sessions      []string
		workspaces    []string
		allWorkspaces bool
		workspaceRoot string
		cacheDir      string
		noCache       bool
		minScore      float64
		printLatency  bool
		tagged        bool
	)

	cmd := &cobra.Command{
		Use:   "recall <text>...",
		Short: "Find past conversation turns similar to a situation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if allWorkspaces && len(workspaces) > 0 {
				return errors.New("--all-workspaces cannot be used with --workspace")
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.RecallLimit
			}
			if cmd.Flags().Changed("min-score") {
				minScore = clampUnit(minScore)
			} else {
				minScore = defaultMinScore(cmd.Context())
			}
			if cacheDir == "" {
				cacheDir = cfg.CacheDir
			}

			fingerprints, err := workspace.ResolveFilters(workspace.FilterOptions{
				Registry:      loadWorkspaces(),
				Root:          workspaceRoot,
				Selectors:     workspaces,
				AllWorkspaces: allWorkspaces,
			})
			if err != nil {
				return err
			}

			engine := newRecallEngine(cacheDir, noCache)
			resp, err := engine.Query(cmd.Context(), recall.Query{
				Text: strings.Join(args, " "),
				Filter: recall.Filter{
					Agent:      agent,
					Workspaces: fingerprints,
					Sessions:   sessions,
				},
				Limit:    limit,
				MinScore: minScore,
			})
			if err != nil {
				return fmt.Errorf("recall: %w", err)
			}
			if snap, err := engine.Metrics().Snapshot(cmd.Context()); err == nil {
				log.Debug().Int64("rebuilds", snap.Rebuilds).Int64("file_hits", snap.File.Hits).
					Int64("file_misses", snap.File.Misses).Msg("Recall cache")
			}
			return recall.FormatResponse(cmd.OutOrStdout(), resp, recall.FormatOptions{
				PrintLatency: printLatency,
				Tagged:       tagged,
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&limit, "limit", recall.DefaultLimit, "maximum results")
	flags.StringVar(&agent, "agent", "", "only documents from this agent")
	flags.StringArrayVar(&sessions, "session", nil, "only this session (repeatable)")
	flags.StringArrayVar(&workspaces, "workspace", nil, "workspace fingerprint, path or registered name (repeatable)")
	flags.BoolVar(&allWorkspaces, "all-workspaces", false, "search every workspace")
	flags.StringVar(&workspaceRoot, "workspace-root", "", "workspace root used for the default filter (default: cwd)")
	flags.StringVar(&cacheDir, "cache-dir", "", "index cache directory (default: ~/.chatlens/cache)")
	flags.BoolVar(&noCache, "no-cache", false, "rebuild the index and skip the cache")
	flags.Float64Var(&minScore, "min-score", 0, "suppress results scoring below this (default: CHATLENS_MIN_SCORE or the catalog's actionable threshold)")
	flags.BoolVar(&printLatency, "print-latency", false, "print query latency")
	flags.BoolVar(&tagged, "tagged", false, "wrap output in recall tags so pasting it into a chat does not re-index it")
	return cmd
}
