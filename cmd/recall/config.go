package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/spf13/viper"
)

const (
	defaultBindHost            = "127.0.0.1"
	defaultAPIPort             = 3000
	defaultOTLPAddr            = "127.0.0.1:4317"
	defaultQueryTimeout        = 30 * time.Second
	defaultMaxConcurrentReads  = 8
	defaultInsertBatchSize     = 2000
	defaultInsertFlushInterval = 100 * time.Millisecond
	defaultInsertFlushQueue    = 64
	defaultLogRetention        = 30 // days, 0 = disabled
	defaultArchiveBatchSize    = 1000
	defaultExportMaxRows       = 100000
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	DBPath              string        `mapstructure:"db-path"`
	Project             string        `mapstructure:"project"`
	Host                string        `mapstructure:"host"`
	APIPort             int           `mapstructure:"api-port"`
	APIAddr             string        `mapstructure:"api-addr"`
	APIKey              string        `mapstructure:"api-key"`
	IngestKey           string        `mapstructure:"ingest-key"`
	QueryTimeout        time.Duration `mapstructure:"query-timeout"`
	MaxConcurrentReads  int           `mapstructure:"max-concurrent-queries"`
	DefaultLimit        int           `mapstructure:"default-limit"`
	MaxLimit            int           `mapstructure:"max-limit"`
	InsertBatchSize     int           `mapstructure:"insert-batch-size"`
	InsertFlushInterval time.Duration `mapstructure:"insert-flush-interval"`
	InsertFlushQueue    int           `mapstructure:"insert-flush-queue-size"`
	OTLPEnabled         bool          `mapstructure:"otlp-enabled"`
	OTLPAddr            string        `mapstructure:"otlp-addr"`
	LogRetention        int           `mapstructure:"log-retention"`
	ArchiveDir          string        `mapstructure:"archive-dir"`
	ArchiveBatchSize    int           `mapstructure:"archive-batch-size"`
	SavedSearchesPath   string        `mapstructure:"saved-searches-path"`
	ExportMaxRows       int           `mapstructure:"export-max-rows"`
	MetricsEnabled      bool          `mapstructure:"metrics-enabled"`
	ConfigPath          string        `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("RECALL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("db-path", filepath.Join(home, ".local", "share", "recall", "recall.duckdb"))
	v.SetDefault("project", model.DefaultProjectName)
	v.SetDefault("host", defaultBindHost)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("api-addr", "")
	v.SetDefault("api-key", "")
	v.SetDefault("ingest-key", "")
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("max-concurrent-queries", defaultMaxConcurrentReads)
	v.SetDefault("default-limit", model.DefaultLimit)
	v.SetDefault("max-limit", model.MaxLimit)
	v.SetDefault("insert-batch-size", defaultInsertBatchSize)
	v.SetDefault("insert-flush-interval", defaultInsertFlushInterval)
	v.SetDefault("insert-flush-queue-size", defaultInsertFlushQueue)
	v.SetDefault("otlp-enabled", true)
	v.SetDefault("otlp-addr", defaultOTLPAddr)
	v.SetDefault("log-retention", defaultLogRetention)
	v.SetDefault("archive-dir", "")
	v.SetDefault("archive-batch-size", defaultArchiveBatchSize)
	v.SetDefault("saved-searches-path", filepath.Join(home, ".config", "recall", "saved_searches.yml"))
	v.SetDefault("export-max-rows", defaultExportMaxRows)
	v.SetDefault("metrics-enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "recall", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err == nil {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.MaxLimit <= 0 {
		return cfg, fmt.Errorf("invalid max-limit: %d", cfg.MaxLimit)
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		return cfg, fmt.Errorf("invalid default-limit: %d (must be 1..%d)", cfg.DefaultLimit, cfg.MaxLimit)
	}
	if cfg.LogRetention < 0 {
		return cfg, fmt.Errorf("invalid log-retention: %d", cfg.LogRetention)
	}

	if cfg.Host == "" {
		cfg.Host = defaultBindHost
	}

	cfg.DBPath = expandHome(home, cfg.DBPath)
	cfg.ArchiveDir = expandHome(home, cfg.ArchiveDir)
	cfg.SavedSearchesPath = expandHome(home, cfg.SavedSearchesPath)

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

// expandHome expands a leading ~/ in path.
func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
