package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/chatlens/internal/db/gorm"
	"github.com/thebtf/chatlens/internal/motif"
	"github.com/thebtf/chatlens/pkg/models"
)

// defaultMinScore is CHATLENS_MIN_SCORE when set, otherwise the actionable
// threshold implied by the catalog's repeat-failure telemetry.
func defaultMinScore(ctx context.Context) float64 {
	if cfg.MinScore != nil {
		return *cfg.MinScore
	}
	store, err := gorm.OpenReadOnly(catalogPath)
	if err != nil {
		return motif.FallbackThreshold
	}
	defer store.Close()

	th, err := store.ActionableThreshold(ctx, time.Now())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to derive actionable threshold, using fallback")
		return motif.FallbackThreshold
	}
	log.Debug().Float64("threshold", th.Value).Int("samples", th.Samples).Bool("fallback", th.Fallback).
		Msg("Actionable threshold")
	return th.Value
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}

// recordRepeatFailures recounts failed terminal commands over sessions and
// replaces the stored telemetry.
func recordRepeatFailures(ctx context.Context, store *gorm.Store, sessions []models.Session) (int, error) {
	agg := motif.NewFailureAggregator()
	for _, s := range sessions {
		agg.AddSession(s)
	}
	if err := store.ReplaceRepeatFailures(ctx, agg.Entries()); err != nil {
		return 0, fmt.Errorf("replace repeat failures: %w", err)
	}
	return agg.Len(), nil
}
