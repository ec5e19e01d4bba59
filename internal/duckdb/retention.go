package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brainz-lab/recall/internal/export"
	"github.com/brainz-lab/recall/internal/model"
)

// RetentionConfig holds configuration for the retention archiver.
type RetentionConfig struct {
	RetentionDays int
	// ArchiveDir, when set, receives a JSON export of each expired batch
	// before it is deleted.
	ArchiveDir string
	BatchSize  int
	Project    string
	// OnArchive, when set, is called with the number of records removed by
	// each run.
	OnArchive func(n int64)
}

// ArchivePreview describes what an archive run would remove.
type ArchivePreview struct {
	RetentionDays int       `json:"retention_days"`
	Cutoff        time.Time `json:"cutoff"`
	LogsToArchive int64     `json:"logs_to_archive"`
}

// RetentionCleaner periodically archives and deletes logs older than the
// configured retention period.
type RetentionCleaner struct {
	store    *Store
	conf     RetentionConfig
	now      func() time.Time
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func normalizeRetention(conf RetentionConfig) RetentionConfig {
	if conf.BatchSize <= 0 {
		conf.BatchSize = 1000
	}
	if conf.Project == "" {
		conf.Project = model.DefaultProjectName
	}
	return conf
}

// NewRetentionCleaner creates an archiver, runs it once, and schedules it
// hourly. Returns nil when retention is 0 (disabled).
func NewRetentionCleaner(store *Store, conf RetentionConfig) *RetentionCleaner {
	if conf.RetentionDays <= 0 {
		return nil
	}

	rc := &RetentionCleaner{
		store: store,
		conf:  normalizeRetention(conf),
		now:   time.Now,
		done:  make(chan struct{}),
	}

	// Catch up after downtime.
	rc.cleanup()

	rc.wg.Add(1)
	go rc.tickLoop()

	return rc
}

func (rc *RetentionCleaner) tickLoop() {
	defer rc.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup()
		case <-rc.done:
			return
		}
	}
}

func (rc *RetentionCleaner) cleanup() {
	n, err := rc.store.Archive(context.Background(), rc.conf, rc.now())
	if err != nil {
		log.Printf("duckdb: retention archive error: %v", err)
	}
	if n > 0 {
		log.Printf("duckdb: retention archived %d logs older than %d days", n, rc.conf.RetentionDays)
	}
	if rc.conf.OnArchive != nil {
		rc.conf.OnArchive(n)
	}
}

// Stop signals the cleaner to stop and waits for it to finish.
func (rc *RetentionCleaner) Stop() {
	rc.stopOnce.Do(func() {
		close(rc.done)
		rc.wg.Wait()
	})
}

// RetentionCutoff returns the instant before which records expire.
func RetentionCutoff(days int, now time.Time) time.Time {
	return now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
}

// PreviewArchive counts the records an archive run at now would remove.
func (s *Store) PreviewArchive(ctx context.Context, days int, now time.Time) (*ArchivePreview, error) {
	cutoff := RetentionCutoff(days, now)
	var n int64
	err := s.read(ctx, func(ctx context.Context, db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs WHERE "timestamp" < `+timeParam, sqlTime(cutoff)).Scan(&n)
	})
	if err != nil {
		return nil, err
	}
	return &ArchivePreview{RetentionDays: days, Cutoff: cutoff, LogsToArchive: n}, nil
}

// Archive removes records older than the retention cutoff in batches.
// With an archive directory configured, every batch is appended to a JSON
// export file first, and a batch whose export fails is not deleted.
func (s *Store) Archive(ctx context.Context, conf RetentionConfig, now time.Time) (int64, error) {
	if conf.RetentionDays <= 0 {
		return 0, nil
	}
	conf = normalizeRetention(conf)
	cutoff := RetentionCutoff(conf.RetentionDays, now)

	var (
		jw    *export.JSONWriter
		file  *os.File
		total int64
	)
	if conf.ArchiveDir != "" {
		if err := os.MkdirAll(conf.ArchiveDir, 0755); err != nil {
			return 0, fmt.Errorf("create archive dir: %w", err)
		}
		name := fmt.Sprintf("%s_archive_%s.json", conf.Project, now.UTC().Format("20060102_150405"))
		f, err := os.Create(filepath.Join(conf.ArchiveDir, name))
		if err != nil {
			return 0, fmt.Errorf("create archive file: %w", err)
		}
		file = f
		jw = export.NewJSONWriter(f)
	}

	finish := func(err error) (int64, error) {
		if file == nil {
			return total, err
		}
		cerr := jw.Close()
		if ferr := file.Close(); cerr == nil {
			cerr = ferr
		}
		if jw.Count() == 0 {
			os.Remove(file.Name())
		}
		if err == nil && cerr != nil {
			err = fmt.Errorf("close archive file: %w", cerr)
		}
		return total, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		ids, batch, err := s.expiredBatch(ctx, cutoff, conf.BatchSize)
		if err != nil {
			return finish(err)
		}
		if len(ids) == 0 {
			return finish(nil)
		}
		if jw != nil {
			for i := range batch {
				if err := jw.Write(&batch[i]); err != nil {
					return finish(fmt.Errorf("write archive: %w", err))
				}
			}
		}
		n, err := s.deleteIDs(ctx, ids)
		total += n
		if err != nil {
			return finish(err)
		}
		if len(ids) < conf.BatchSize {
			return finish(nil)
		}
	}
}

// idScanner prepends the row's id to every Scan so the id survives a record
// that fails to decode.
type idScanner struct {
	rows *sql.Rows
	id   *string
}

func (p idScanner) Scan(dest ...any) error {
	return p.rows.Scan(append([]any{p.id}, dest...)...)
}

// expiredBatch returns the ids of up to size records older than cutoff and
// the records among them that decode. Undecodable rows are still listed in
// ids so they expire too.
func (s *Store) expiredBatch(ctx context.Context, cutoff time.Time, size int) ([]string, []model.LogRecord, error) {
	var (
		ids []string
		out []model.LogRecord
	)
	err := s.read(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT id, `+logColumns+` FROM logs WHERE "timestamp" < `+timeParam+` ORDER BY "timestamp" ASC LIMIT ?`, sqlTime(cutoff), size)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			rec, err := scanRecord(idScanner{rows: rows, id: &id})
			if id != "" {
				ids = append(ids, id)
			}
			if err != nil {
				log.Printf("duckdb scan error (expiredBatch): %v", err)
				continue
			}
			out = append(out, *rec)
		}
		return rows.Err()
	})
	return ids, out, err
}

func (s *Store) deleteIDs(ctx context.Context, ids []string) (int64, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM logs WHERE id = ?")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int64
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", id, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			n += affected
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return n, nil
}
