// Package store persists exercise records in an append-only SQLite
// journal, partitioned by user. It exposes atomic batch insert and
// scoped read-only query execution; there is deliberately no update or
// delete path.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/liftlog-ai/liftlog/internal/record"
)

// PersistenceError reports a rejected insert batch. No record from the
// batch is visible after the error.
type PersistenceError struct {
	Reason string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persist records: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("persist records: %s", e.Reason)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ExecutionError reports a backend failure while running a read query.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("execute query: %v", e.Err) }

func (e *ExecutionError) Unwrap() error { return e.Err }

// Row is one result row from a scoped query, column names paired with
// scanned values in query order.
type Row struct {
	Columns []string
	Values  []any
}

// Chat associates a user with the most recent chat they wrote from.
type Chat struct {
	UserID string
	ChatID int64
}

// Store is the SQLite-backed record journal.
type Store struct {
	db *sql.DB
}

const chatsSchema = `
CREATE TABLE IF NOT EXISTS chats (
	user_id TEXT PRIMARY KEY,
	chat_id INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);`

// Open opens (creating if needed) the database at path and applies the
// schema. Writes are durable once the enclosing call returns.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(record.CreateTableSQL()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate record table: %w", err)
	}
	if _, err := db.Exec(chatsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate chats table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AtomicInsert persists all drafts in one transaction or none of them.
// Every draft is validated before the transaction opens; any invariant
// violation rejects the whole batch with a PersistenceError.
func (s *Store) AtomicInsert(ctx context.Context, userID string, drafts []record.Draft) ([]record.Record, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &PersistenceError{Reason: "user id is required"}
	}
	for i, d := range drafts {
		if err := d.Validate(); err != nil {
			return nil, &PersistenceError{Reason: fmt.Sprintf("draft %d rejected", i+1), Err: err}
		}
	}
	if len(drafts) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &PersistenceError{Reason: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	records := make([]record.Record, 0, len(drafts))
	for _, d := range drafts {
		rec, err := insertDraft(ctx, tx, userID, d, now)
		if err != nil {
			return nil, &PersistenceError{Reason: "insert record", Err: err}
		}
		records = append(records, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, &PersistenceError{Reason: "commit transaction", Err: err}
	}
	return records, nil
}

var insertSQL = fmt.Sprintf(
	"INSERT INTO %s (%s) VALUES (%s)",
	record.TableName,
	strings.Join(record.ColumnNames(), ", "),
	strings.TrimPrefix(strings.Repeat(", ?", len(record.ColumnNames())), ", "),
)

func insertDraft(ctx context.Context, tx *sql.Tx, userID string, d record.Draft, now time.Time) (record.Record, error) {
	reps, err := json.Marshal(sliceOrEmpty(d.Reps))
	if err != nil {
		return record.Record{}, fmt.Errorf("encode reps: %w", err)
	}
	weights, err := json.Marshal(sliceOrEmpty(d.WeightsKg))
	if err != nil {
		return record.Record{}, fmt.Errorf("encode weights: %w", err)
	}

	rec := record.Record{
		ID:              uuid.NewString(),
		UserID:          userID,
		ExerciseName:    d.ExerciseName,
		Sets:            d.Sets,
		Reps:            d.Reps,
		Weights:         d.WeightsKg,
		Bodyweight:      d.Bodyweight,
		DurationSeconds: d.DurationSeconds,
		Notes:           d.Notes,
		CreatedAt:       now,
	}

	_, err = tx.ExecContext(ctx, insertSQL,
		rec.ID,
		rec.UserID,
		rec.ExerciseName,
		rec.Sets,
		string(reps),
		string(weights),
		boolToInt(rec.Bodyweight),
		rec.DurationSeconds,
		rec.Notes,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

// RunScopedQuery executes a read-only query that the executor has
// already validated as scoped to userID. A query matching no rows
// returns an empty slice, not an error.
func (s *Store) RunScopedQuery(ctx context.Context, userID, query string) ([]Row, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &ExecutionError{Err: errors.New("user id is required")}
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		dests := make([]any, len(cols))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, &ExecutionError{Err: err}
		}
		for i, v := range values {
			// The sqlite driver hands back []byte for TEXT columns.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Err: err}
	}
	return out, nil
}

// RegisterChat remembers the most recent chat a user wrote from so
// scheduled recaps can reach them between messages.
func (s *Store) RegisterChat(ctx context.Context, userID string, chatID int64) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (user_id, chat_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET chat_id = excluded.chat_id, updated_at = excluded.updated_at`,
		userID, chatID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("register chat for user %s: %w", userID, err)
	}
	return nil
}

// ListChats returns every known user/chat association.
func (s *Store) ListChats(ctx context.Context) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id, chat_id FROM chats ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.UserID, &c.ChatID); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// CountRecords reports how many records a user has. Used by tests and
// the start command's startup log line.
func (s *Store) CountRecords(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = ?", record.TableName),
		userID,
	).Scan(&n)
	if err != nil {
		return 0, &ExecutionError{Err: err}
	}
	return n, nil
}

func sliceOrEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
