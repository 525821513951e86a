package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"procodus.dev/scmxpert/internal/store"
	"procodus.dev/scmxpert/internal/tracking"
)

const dateLayout = "2006-01-02"

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the daily analytics rollup",
	Long: `Compute the analytics rollup of every user and upsert it for one day.
Running it again for the same day replaces that day's rows.`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().String("date", "", "day to snapshot as YYYY-MM-DD (default today, UTC)")

	_ = viper.BindPFlag("snapshot.date", snapshotCmd.Flags().Lookup("date"))
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	logger := GetLogger("snapshot")

	day := time.Now().UTC()
	if raw := viper.GetString("snapshot.date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", raw, err)
		}
		day = parsed
	}

	db, err := store.NewDB(GetDBConfig(logger))
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		return err
	}

	runErr := snapshot(cmd.Context(), db, day, logger)
	return errors.Join(runErr, store.CloseDB(db, logger))
}

func snapshot(ctx context.Context, db *gorm.DB, day time.Time, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.New(db)
	if err != nil {
		return err
	}

	svc, err := tracking.NewService(&tracking.Config{Logger: logger, Store: st})
	if err != nil {
		return err
	}

	n, err := svc.SnapshotAll(ctx, day)
	if err != nil {
		logger.Error("analytics snapshot failed", "date", day.Format(dateLayout), "error", err)
		return err
	}

	logger.Info("analytics snapshot written", "date", day.Format(dateLayout), "users", n)
	return nil
}
