package duckdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brainz-lab/recall/internal/duckdb/migrate"
	"github.com/brainz-lab/recall/internal/model"
	_ "github.com/duckdb/duckdb-go/v2"
	"golang.org/x/sync/semaphore"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = model.ErrNotFound

// Store manages the DuckDB database connection and provides query methods.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	QueryTimeout time.Duration

	semMu   sync.RWMutex
	readSem *semaphore.Weighted
}

// NewStore opens or creates a DuckDB database.
// If dbPath is empty, an in-memory database is used.
// An optional queryTimeout can be passed; it defaults to 30s.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}

	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, err
	}

	qt := 30 * time.Second
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		QueryTimeout: qt,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the configured DuckDB path. Empty means in-memory DB.
func (s *Store) DBPath() string {
	return s.dbPath
}

// SetMaxConcurrentQueries bounds how many read queries run at once.
// Zero or less removes the bound.
func (s *Store) SetMaxConcurrentQueries(n int) {
	s.semMu.Lock()
	defer s.semMu.Unlock()
	if n <= 0 {
		s.readSem = nil
		return
	}
	s.readSem = semaphore.NewWeighted(int64(n))
}

// queryCtx derives a context bounded by the store's query timeout.
func (s *Store) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, s.QueryTimeout)
}

// beginRead takes a read slot and the shared lock. The returned func
// releases both.
func (s *Store) beginRead(ctx context.Context) (func(), error) {
	s.semMu.RLock()
	sem := s.readSem
	s.semMu.RUnlock()

	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	return func() {
		s.mu.RUnlock()
		if sem != nil {
			sem.Release(1)
		}
	}, nil
}
