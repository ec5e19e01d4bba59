package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/brainz-lab/recall/internal/duckdb"
	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive and delete logs older than the retention period",
	Long: `Runs one retention pass against the database. Expired records are
written to the archive directory (when configured) and deleted. With
--dry-run only the number of records that would be removed is reported.

The server must be stopped first; DuckDB allows one process per file.`,
	RunE: runArchiveCmd,
}

var (
	archiveDryRun bool
	archiveDays   int
)

func init() {
	archiveCmd.Flags().BoolVar(&archiveDryRun, "dry-run", false, "report what would be archived without deleting")
	archiveCmd.Flags().IntVar(&archiveDays, "days", 0, "retention in days (default from config)")
	rootCmd.AddCommand(archiveCmd)
}

func runArchiveCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if archiveDays > 0 {
		cfg.LogRetention = archiveDays
	}

	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to open DuckDB: %w", err)
	}
	defer store.Close()

	return runArchive(cmd.Context(), cmd.OutOrStdout(), store, cfg, archiveDryRun, time.Now())
}

func runArchive(ctx context.Context, w io.Writer, store *duckdb.Store, cfg appConfig, dryRun bool, now time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.LogRetention <= 0 {
		return errors.New("log-retention is disabled; pass --days")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if dryRun {
		preview, err := store.PreviewArchive(ctx, cfg.LogRetention, now)
		if err != nil {
			return err
		}
		return enc.Encode(preview)
	}

	n, err := store.Archive(ctx, duckdb.RetentionConfig{
		RetentionDays: cfg.LogRetention,
		ArchiveDir:    cfg.ArchiveDir,
		BatchSize:     cfg.ArchiveBatchSize,
		Project:       cfg.Project,
	}, now)
	if err != nil {
		return err
	}
	return enc.Encode(map[string]any{
		"archived":       n,
		"retention_days": cfg.LogRetention,
		"cutoff":         duckdb.RetentionCutoff(cfg.LogRetention, now),
	})
}
