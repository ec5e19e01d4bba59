package duckdb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brainz-lab/recall/internal/model"
)

func seedAges(t *testing.T, store *Store, now time.Time) {
	t.Helper()
	var recs []*model.LogRecord
	for i := 0; i < 7; i++ {
		recs = append(recs, &model.LogRecord{
			ID:        "old-" + string(rune('a'+i)),
			Timestamp: now.Add(-time.Duration(40+i) * 24 * time.Hour),
			Level:     model.LevelInfo,
		})
	}
	recs = append(recs,
		&model.LogRecord{ID: "new-a", Timestamp: now.Add(-time.Hour), Level: model.LevelInfo},
		&model.LogRecord{ID: "new-b", Timestamp: now.Add(-29 * 24 * time.Hour), Level: model.LevelWarn},
	)
	insertTestRecords(t, store, recs)
}

func TestNewRetentionCleaner_DisabledReturnsNil(t *testing.T) {
	store := newTestStore(t)
	if rc := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 0}); rc != nil {
		t.Error("NewRetentionCleaner with 0 days returned non-nil")
	}
}

func TestPreviewArchive(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	seedAges(t, store, now)

	p, err := store.PreviewArchive(context.Background(), 30, now)
	if err != nil {
		t.Fatalf("PreviewArchive: %v", err)
	}
	if p.LogsToArchive != 7 || p.RetentionDays != 30 || !p.Cutoff.Equal(now.Add(-30*24*time.Hour)) {
		t.Errorf("PreviewArchive = %+v", p)
	}
	if count := totalCount(t, store); count != 9 {
		t.Errorf("preview changed the store: count = %d, want 9", count)
	}
}

func TestArchive_DeletesInBatches(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	seedAges(t, store, now)

	n, err := store.Archive(context.Background(), RetentionConfig{RetentionDays: 30, BatchSize: 3}, now)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if n != 7 {
		t.Errorf("Archive removed %d, want 7", n)
	}
	if count := totalCount(t, store); count != 2 {
		t.Errorf("TotalLogCount after archive = %d, want 2", count)
	}
}

func TestArchive_WritesExportFile(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	seedAges(t, store, now)
	dir := t.TempDir()

	n, err := store.Archive(context.Background(), RetentionConfig{RetentionDays: 30, ArchiveDir: dir, BatchSize: 4, Project: "shop"}, now)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if n != 7 {
		t.Errorf("Archive removed %d, want 7", n)
	}

	data, err := os.ReadFile(filepath.Join(dir, "shop_archive_20240610_000000.json"))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	var archived []model.LogRecord
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatalf("archive is not a JSON array: %v", err)
	}
	if len(archived) != 7 {
		t.Errorf("archive holds %d records, want 7", len(archived))
	}
}

func TestArchive_RemovesUndecodableRows(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	seedAges(t, store, now)

	// A JSON array does not decode into a record's data object.
	for _, id := range []string{"bad-a", "bad-b"} {
		_, err := store.db.Exec(`INSERT INTO logs (id, "timestamp", level, data) VALUES (?, ?, 'info', '[1,2]')`,
			id, now.Add(-50*24*time.Hour))
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	dir := t.TempDir()

	n, err := store.Archive(context.Background(), RetentionConfig{RetentionDays: 30, ArchiveDir: dir, BatchSize: 3, Project: "shop"}, now)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if n != 9 {
		t.Errorf("Archive removed %d, want 9", n)
	}
	if count := totalCount(t, store); count != 2 {
		t.Errorf("TotalLogCount after archive = %d, want 2", count)
	}

	data, err := os.ReadFile(filepath.Join(dir, "shop_archive_20240610_000000.json"))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	var archived []model.LogRecord
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatalf("archive is not a JSON array: %v", err)
	}
	if len(archived) != 7 {
		t.Errorf("archive holds %d records, want the 7 decodable ones", len(archived))
	}
}

func TestArchive_NothingExpiredLeavesNoFile(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	insertTestRecords(t, store, []*model.LogRecord{{ID: "fresh", Timestamp: now, Level: model.LevelInfo}})
	dir := t.TempDir()

	n, err := store.Archive(context.Background(), RetentionConfig{RetentionDays: 1, ArchiveDir: dir}, now)
	if err != nil || n != 0 {
		t.Fatalf("Archive = %d, %v, want 0, nil", n, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("archive dir has %d files, want 0", len(entries))
	}
}

func TestRetentionCleaner_RunsAtStartup(t *testing.T) {
	store := newTestStore(t)
	seedAges(t, store, time.Now())

	var archived int64
	rc := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 30, OnArchive: func(n int64) { archived += n }})
	if rc == nil {
		t.Fatal("NewRetentionCleaner returned nil")
	}
	rc.Stop()
	rc.Stop()

	if archived != 7 {
		t.Errorf("startup run archived %d, want 7", archived)
	}
}
