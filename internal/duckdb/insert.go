package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/google/uuid"
)

// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
const DefaultFlushQueueSize = 64

// InsertBuffer batches log records and flushes them to the writer
// asynchronously. Add never blocks on database writes unless the flush
// queue is full.
type InsertBuffer struct {
	writer        model.LogWriter
	mu            sync.Mutex
	pending       []*model.LogRecord
	flushChan     chan []*model.LogRecord
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	stopOnce      sync.Once

	// OnFlush, when set, is called after each batch write with the batch size
	// and the write error.
	OnFlush func(n int, err error)

	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
}

// NewInsertBuffer creates a buffer that flushes to writer.
func NewInsertBuffer(writer model.LogWriter, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := 500
	flushInterval := 200 * time.Millisecond
	flushQueueSize := DefaultFlushQueueSize
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
	}

	b := &InsertBuffer{
		writer:        writer,
		pending:       make([]*model.LogRecord, 0, batchSize),
		flushChan:     make(chan []*model.LogRecord, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending()
			return
		}
	}
}

// logBackpressure logs at most once per 10 seconds.
func (b *InsertBuffer) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		log.Printf("duckdb: backpressure, %d inline flushes so far (flush queue full)", count)
	}
}

func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]*model.LogRecord, 0, b.maxBatch)
	b.mu.Unlock()

	b.enqueue(batch, "inline")
}

// enqueue hands a batch to the flush worker, or writes it inline when the
// queue is full.
func (b *InsertBuffer) enqueue(batch []*model.LogRecord, where string) {
	select {
	case b.flushChan <- batch:
	default:
		b.logBackpressure()
		b.flushBatch(batch, where)
	}
}

func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		b.flushBatch(batch, "worker")
	}
}

// Add queues a record for batch insertion, assigning an ID if it has none.
func (b *InsertBuffer) Add(record *model.LogRecord) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	b.mu.Lock()
	b.pending = append(b.pending, record)
	var batch []*model.LogRecord
	if len(b.pending) >= b.maxBatch {
		batch = b.pending
		b.pending = make([]*model.LogRecord, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if batch != nil {
		b.enqueue(batch, "overflow-inline")
	}
}

// Stop flushes remaining records and waits for all writes to complete.
func (b *InsertBuffer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		// The tick loop's final drain must land before the queue closes.
		b.tickWg.Wait()
		close(b.flushChan)
		b.wg.Wait()
	})
}

func (b *InsertBuffer) flushBatch(batch []*model.LogRecord, where string) {
	if len(batch) == 0 {
		return
	}
	err := b.writer.InsertLogBatch(batch)
	if err != nil {
		log.Printf("duckdb flush error (%s): %v", where, err)
	}
	if b.OnFlush != nil {
		b.OnFlush(len(batch), err)
	}
}

// InsertLogBatch writes records in a single transaction. If the batch
// fails it is retried record by record so one bad record does not drop
// the rest.
func (s *Store) InsertLogBatch(records []*model.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx(context.Background())
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.insertBatchTx(ctx, records)
	if err == nil {
		return nil
	}

	var failed int
	for _, r := range records {
		if rerr := s.insertBatchTx(ctx, []*model.LogRecord{r}); rerr != nil {
			failed++
			log.Printf("duckdb: dropping record (id=%s msg=%.80s): %v", r.ID, r.Message, rerr)
		}
	}
	if failed == len(records) {
		return fmt.Errorf("insert batch: all %d records failed: %w", failed, err)
	}
	if failed > 0 {
		log.Printf("duckdb: batch partially failed, %d/%d records dropped", failed, len(records))
	}
	return nil
}

func (s *Store) insertBatchTx(ctx context.Context, records []*model.LogRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO logs (id, "timestamp", level, message, "commit", branch, environment, service, host, request_id, session_id, data) VALUES (?, `+timeParam+`, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		dataJSON := []byte("{}")
		if len(r.Data) > 0 {
			if b, merr := json.Marshal(r.Data); merr != nil {
				log.Printf("duckdb: failed to marshal data for %s, using empty: %v", r.ID, merr)
			} else {
				dataJSON = b
			}
		}
		id := r.ID
		if id == "" {
			id = uuid.New().String()
			r.ID = id
		}
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		level := r.Level
		if !level.Valid() {
			level = model.LevelInfo
		}

		if _, err := stmt.ExecContext(ctx,
			id, sqlTime(ts), string(level),
			nullable(r.Message), nullable(r.Commit), nullable(r.Branch),
			nullable(r.Environment), nullable(r.Service), nullable(r.Host),
			nullable(r.RequestID), nullable(r.SessionID), string(dataJSON),
		); err != nil {
			return fmt.Errorf("record insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// nullable stores empty strings as NULL so absent attributes stay absent.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
