package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/brainz-lab/recall/internal/duckdb"
	"github.com/brainz-lab/recall/internal/httpserver"
	"github.com/brainz-lab/recall/internal/ingest"
	"github.com/brainz-lab/recall/internal/metrics"
	"github.com/brainz-lab/recall/internal/savedsearch"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and ingest endpoints",
	Long: `Runs the Recall server: the HTTP query and ingest API, the MCP tool
routes, the OTLP gRPC logs receiver and the retention archiver.
NDJSON piped on stdin is ingested as well.`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return runServer(cfg)
}

// runServer starts the store, ingest paths and the HTTP API and blocks until
// interrupted.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != "" && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Initialize DuckDB store
	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()
	store.SetMaxConcurrentQueries(cfg.MaxConcurrentReads)

	// Create insert buffer for batched DuckDB writes
	insertBuffer := duckdb.NewInsertBuffer(store, duckdb.InsertBufferConfig{
		BatchSize:      cfg.InsertBatchSize,
		FlushInterval:  cfg.InsertFlushInterval,
		FlushQueueSize: cfg.InsertFlushQueue,
	})
	insertBuffer.OnFlush = metrics.RecordFlush
	defer insertBuffer.Stop()

	// Start retention archiver for automatic log expiry
	retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
		RetentionDays: cfg.LogRetention,
		ArchiveDir:    cfg.ArchiveDir,
		BatchSize:     cfg.ArchiveBatchSize,
		Project:       cfg.Project,
		OnArchive:     metrics.RecordArchive,
	})
	if retentionCleaner != nil {
		defer retentionCleaner.Stop()
	}

	searches, err := savedsearch.Open(cfg.SavedSearchesPath)
	if err != nil {
		return fmt.Errorf("failed to open saved searches: %w", err)
	}

	apiServer := httpserver.NewServer(httpserver.Config{
		Addr:          cfg.APIAddr,
		APIKey:        cfg.APIKey,
		IngestKey:     cfg.IngestKey,
		DefaultLimit:  cfg.DefaultLimit,
		MaxLimit:      cfg.MaxLimit,
		ExportMaxRows: cfg.ExportMaxRows,
		Project:       cfg.Project,
		Version:       version,
		Metrics:       cfg.MetricsEnabled,
	}, store, insertBuffer, searches)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer apiServer.Stop()

	var otlpServer *ingest.OTLPServer
	if cfg.OTLPEnabled {
		receiver := ingest.NewReceiver(insertBuffer)
		receiver.OnReceive = func(n int) { metrics.RecordIngest(metrics.SourceOTLP, n) }
		otlpServer = ingest.NewOTLPServer(cfg.OTLPAddr, receiver)
		if err := otlpServer.Start(); err != nil {
			return fmt.Errorf("failed to start OTLP receiver: %w", err)
		}
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	piped := stdinPiped()
	printStartupBanner(cfg, apiServer.Addr(), piped)

	g, gctx := errgroup.WithContext(ctx)

	if piped {
		g.Go(func() error {
			n, err := ingest.ReadLines(gctx, os.Stdin, insertBuffer, nil)
			metrics.RecordIngest(metrics.SourceStdin, n)
			log.Printf("stdin: ingested %d records", n)
			if err != nil && gctx.Err() == nil {
				log.Printf("stdin: %v", err)
			}
			// EOF on stdin does not stop the server.
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	if otlpServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		otlpServer.Stop(stopCtx)
		stopCancel()
	}

	signal.Stop(sigCh)
	return nil
}

// stdinPiped reports whether stdin is a pipe or file rather than a terminal.
func stdinPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "recall")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	f, err := os.OpenFile(filepath.Join(logDir, "recall.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, apiAddr string, stdin bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦═╗╔═╗╔═╗╔═╗╦  ╦
    ╠╦╝║╣ ║  ╠═╣║  ║
    ╩╚═╚═╝╚═╝╩ ╩╩═╝╩═╝`)

	separator := dim.Render("    ─────────────────────────────────")
	row := func(mark, label, value string) string {
		return fmt.Sprintf("    %s  %-14s %s", mark, label, value)
	}

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Gateway"), "")
	lines = append(lines, row(check, "HTTP API", cyan.Render(apiAddr)))
	lines = append(lines, row(check, "MCP", cyan.Render(apiAddr+"/mcp/rpc")))
	if cfg.OTLPEnabled {
		lines = append(lines, row(check, "OTLP gRPC", cyan.Render(cfg.OTLPAddr)))
	} else {
		lines = append(lines, row(dot, "OTLP gRPC", dim.Render("disabled")))
	}
	if stdin {
		lines = append(lines, row(check, "Stdin", dim.Render("NDJSON")))
	}
	if cfg.APIKey == "" {
		lines = append(lines, row(dot, "Auth", yellow.Render("open (no api-key)")))
	} else {
		lines = append(lines, row(check, "Auth", dim.Render("api key")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	lines = append(lines, row(check, "Database", dim.Render(shortenPath(cfg.DBPath))))
	if cfg.LogRetention > 0 {
		lines = append(lines, row(check, "Retention", dim.Render(fmt.Sprintf("%d days", cfg.LogRetention))))
	} else {
		lines = append(lines, row(dot, "Retention", dim.Render("disabled")))
	}
	if cfg.ArchiveDir != "" {
		lines = append(lines, row(check, "Archive", dim.Render(shortenPath(cfg.ArchiveDir))))
	}
	lines = append(lines, row(check, "Searches", dim.Render(shortenPath(cfg.SavedSearchesPath))))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(check, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, row(dot, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
