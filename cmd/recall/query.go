package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/brainz-lab/recall/internal/duckdb"
	"github.com/brainz-lab/recall/internal/ingest"
	"github.com/brainz-lab/recall/internal/mcp"
	"github.com/brainz-lab/recall/internal/memstore"
	"github.com/brainz-lab/recall/internal/model"
	"github.com/brainz-lab/recall/internal/rql"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [RQL]",
	Short: "Run an RQL query and print the result as JSON",
	Long: `Runs one RQL query against the configured DuckDB database, or against
an NDJSON file loaded into memory with --file (use - for stdin).

  recall query 'level:error since:1h | last 20'
  recall query --file app.log 'service:api | stats by:level'`,
	RunE: runQueryCmd,
}

type queryOptions struct {
	File  string
	DB    string
	Limit int
}

var queryOpts queryOptions

func init() {
	queryCmd.Flags().StringVar(&queryOpts.File, "file", "", "query an NDJSON log file instead of the database")
	queryCmd.Flags().StringVar(&queryOpts.DB, "db", "", "DuckDB database path (default from config)")
	queryCmd.Flags().IntVar(&queryOpts.Limit, "limit", 0, "result limit when the query has no first/last")
	rootCmd.AddCommand(queryCmd)
}

func runQueryCmd(cmd *cobra.Command, args []string) error {
	opts := queryOpts
	if opts.File == "" && opts.DB == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		opts.DB = cfg.DBPath
	}
	return runQuery(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), strings.Join(args, " "), opts, time.Now())
}

// runQuery executes raw against the source opts selects and writes the JSON
// payload to w.
func runQuery(ctx context.Context, w io.Writer, stdin io.Reader, raw string, opts queryOptions, now time.Time) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var source rql.Source
	switch {
	case opts.File != "":
		mem, err := loadFile(ctx, opts.File, stdin, now)
		if err != nil {
			return err
		}
		source = mem
	default:
		store, err := duckdb.NewStore(opts.DB)
		if err != nil {
			return fmt.Errorf("opening %s: %w", opts.DB, err)
		}
		defer store.Close()
		source = store
	}

	limit := opts.Limit
	if limit > model.MaxLimit {
		limit = model.MaxLimit
	}

	q := rql.ParseAt(raw, now)
	res, err := rql.NewExecutor().Execute(ctx, source.View(), q, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(mcp.QueryPayload(res))
}

// loadFile reads an NDJSON file (or stdin for "-") into a memory store.
func loadFile(ctx context.Context, path string, stdin io.Reader, now time.Time) (*memstore.Store, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var records []*model.LogRecord
	_, err := ingest.ReadLines(ctx, r, ingest.SinkFunc(func(rec *model.LogRecord) {
		records = append(records, rec)
	}), func() time.Time { return now })
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	mem := memstore.New()
	if err := mem.InsertLogBatch(records); err != nil {
		return nil, err
	}
	return mem, nil
}
