// Package history persists per-item batch outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/ZacxDev/reelbatch/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// Bump when the schema changes; older databases must be deleted.
const schemaVersion = 1

var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Record is one stored item outcome.
type Record struct {
	ID         int64
	RunID      string
	RecordedAt time.Time
	types.ItemResult
}

// Store manages result persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create history directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, errors.Wrapf(execErr, "apply pragma %q", pragma)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return errors.Wrap(err, "check schema_version table")
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin schema tx")
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return errors.Wrap(err, "create schema")
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return errors.Wrap(err, "record schema version")
		}
		return errors.Wrap(tx.Commit(), "commit schema")
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return errors.Wrap(err, "read schema version")
	}
	if version != schemaVersion {
		return errors.Wrapf(ErrSchemaMismatch, "database has version %d, expected %d (delete %s)", version, schemaVersion, s.path)
	}
	return nil
}

// RecordBatch appends every item of batch in one transaction.
func (s *Store) RecordBatch(ctx context.Context, batch types.BatchResult) error {
	if len(batch.Results) == 0 {
		return nil
	}
	recordedAt := batch.FinishedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin record tx")
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO item_results
			(run_id, row_index, file_name, success, video_url, error, strategy,
			 elapsed_ms, result_recorded, marker_cleared, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "prepare insert")
		}
		defer stmt.Close()

		for _, r := range batch.Results {
			if _, err := stmt.ExecContext(ctx,
				batch.RunID, r.RowIndex, r.FileName, boolToInt(r.Success), r.VideoURL, r.Error, r.Strategy,
				r.Elapsed.Milliseconds(), boolToInt(r.WriteBack.ResultRecorded), boolToInt(r.WriteBack.MarkerCleared),
				recordedAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return errors.Wrapf(err, "insert result for row %d", r.RowIndex)
			}
		}
		return errors.Wrap(tx.Commit(), "commit results")
	})
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, row_index, file_name, success, video_url, error,
		strategy, elapsed_ms, result_recorded, marker_cleared, recorded_at
		FROM item_results ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query results")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec                        Record
			success, recorded, cleared int
			elapsedMS                  int64
			recordedAt                 string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.RowIndex, &rec.FileName, &success, &rec.VideoURL,
			&rec.Error, &rec.Strategy, &elapsedMS, &recorded, &cleared, &recordedAt); err != nil {
			return nil, errors.Wrap(err, "scan result")
		}
		rec.Success = success != 0
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		rec.WriteBack.ResultRecorded = recorded != 0
		rec.WriteBack.MarkerCleared = cleared != 0
		if ts, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			rec.RecordedAt = ts
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "iterate results")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
