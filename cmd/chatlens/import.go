package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"

	"github.com/thebtf/chatlens/internal/config"
	"github.com/thebtf/chatlens/internal/db/gorm"
	"github.com/thebtf/chatlens/internal/ingest"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <export.json>...",
		Short: "Load normalized session exports into the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.EnsureAll(); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}
			store, err := gorm.NewStore(gorm.Config{Path: catalogPath, LogLevel: logger.Silent})
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer store.Close()
			ctx := cmd.Context()

			total := 0
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open export: %w", err)
				}
				sessions, err := ingest.Decode(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				for _, s := range sessions {
					if err := store.SaveSession(ctx, s); err != nil {
						return fmt.Errorf("save session %s: %w", s.ID, err)
					}
				}
				log.Debug().Str("path", path).Int("sessions", len(sessions)).Msg("Imported export")
				total += len(sessions)
			}

			all, err := store.LoadSessions(ctx, gorm.SessionFilter{})
			if err != nil {
				return fmt.Errorf("load sessions: %w", err)
			}
			failures, err := recordRepeatFailures(ctx, store, all)
			if err != nil {
				return err
			}
			log.Debug().Int("repeat_failures", failures).Msg("Repeat-failure telemetry refreshed")

			if err := store.SetMetadata(ctx, "last_import_ms", strconv.FormatInt(time.Now().UnixMilli(), 10)); err != nil {
				return fmt.Errorf("record import time: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sessions into %s\n", total, catalogPath)
			return nil
		},
	}
}
