package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS refinements (
	id          TEXT PRIMARY KEY,
	identifier  TEXT NOT NULL,
	operation   TEXT NOT NULL,
	batch_size  INTEGER NOT NULL,
	cache_hits  INTEGER NOT NULL,
	allowed     INTEGER NOT NULL,
	latency_ms  INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refinements_created_at ON refinements(created_at);
CREATE INDEX IF NOT EXISTS idx_refinements_identifier ON refinements(identifier);
`

// Entry is one refinement decision to record.
type Entry struct {
	// Identifier is the rate-limit identifier the decision was for.
	Identifier string

	// Operation is "single" or "batch".
	Operation string

	// BatchSize is the number of bullets in the operation.
	BatchSize int

	// CacheHits is how many bullets were served from cache.
	CacheHits int

	// Allowed reports the quota admission outcome.
	Allowed bool

	// Latency is the end-to-end operation duration.
	Latency time.Duration
}

// Config configures the ledger.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// RetentionDays is how long records are kept before pruning.
	RetentionDays int

	// BufferSize is the async write queue depth. Default: 256.
	BufferSize int
}

// Ledger is a local SQLite record of refinement decisions. Writes are
// queued and flushed by a background goroutine; a full queue drops the
// entry rather than blocking a refinement.
type Ledger struct {
	db      *sql.DB
	cfg     Config
	logger  *slog.Logger
	entries chan Entry
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	now     func() time.Time
}

// Open opens (creating if necessary) the ledger database and starts
// the background writer.
func Open(cfg Config) (*Ledger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("ledger path cannot be empty")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	l := &Ledger{
		db:      db,
		cfg:     cfg,
		logger:  slog.Default().With("component", "usage"),
		entries: make(chan Entry, cfg.BufferSize),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

// RecordRefinement queues one refinement decision for recording. It
// never blocks: if the queue is full the entry is dropped with a
// warning.
func (l *Ledger) RecordRefinement(entry Entry) {
	select {
	case l.entries <- entry:
	default:
		l.logger.Warn("usage queue full, dropping entry", "identifier", entry.Identifier)
	}
}

// writeLoop drains the entry queue until Close.
func (l *Ledger) writeLoop() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.entries:
			l.insert(entry)
		case <-l.done:
			// Drain whatever is queued before exiting.
			for {
				select {
				case entry := <-l.entries:
					l.insert(entry)
				default:
					return
				}
			}
		}
	}
}

func (l *Ledger) insert(entry Entry) {
	allowed := 0
	if entry.Allowed {
		allowed = 1
	}

	_, err := l.db.Exec(
		`INSERT INTO refinements (id, identifier, operation, batch_size, cache_hits, allowed, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		entry.Identifier,
		entry.Operation,
		entry.BatchSize,
		entry.CacheHits,
		allowed,
		entry.Latency.Milliseconds(),
		l.now().Unix(),
	)
	if err != nil {
		l.logger.Error("failed to record usage entry", "error", err)
	}
}

// Prune deletes records older than the retention window and returns
// the number deleted.
func (l *Ledger) Prune(ctx context.Context) (int64, error) {
	cutoff := l.now().AddDate(0, 0, -l.cfg.RetentionDays).Unix()

	res, err := l.db.ExecContext(ctx,
		`DELETE FROM refinements WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned records: %w", err)
	}
	return deleted, nil
}

// Count returns the number of recorded decisions, for tests and
// operational checks.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var count int64
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refinements`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage records: %w", err)
	}
	return count, nil
}

// Flush blocks until all currently queued entries are written. Test
// helper; production code relies on the background writer.
func (l *Ledger) Flush() {
	for len(l.entries) > 0 {
		time.Sleep(5 * time.Millisecond)
	}
	// One more insert may be in flight; a single-writer DB serializes
	// behind the next Exec.
	_, _ = l.db.Exec(`SELECT 1`)
}

// Close stops the background writer, drains the queue, and closes the
// database.
func (l *Ledger) Close() error {
	var closeErr error
	l.once.Do(func() {
		close(l.done)
		l.wg.Wait()
		closeErr = l.db.Close()
	})
	return closeErr
}
