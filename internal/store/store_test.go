package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/liftlog-ai/liftlog/internal/record"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "liftlog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func benchPressDraft() record.Draft {
	return record.Draft{
		ExerciseName: "bench press",
		Sets:         3,
		Reps:         []int{10, 10, 10},
		WeightsKg:    []float64{60, 60, 60},
	}
}

func TestAtomicInsertPersistsAllDrafts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	drafts := []record.Draft{
		benchPressDraft(),
		{ExerciseName: "treadmill", DurationSeconds: 1200, Notes: "easy pace"},
	}
	records, err := st.AtomicInsert(ctx, "user-a", drafts)
	if err != nil {
		t.Fatalf("atomic insert: %v", err)
	}
	if len(records) != len(drafts) {
		t.Fatalf("expected %d records, got %d", len(drafts), len(records))
	}
	for _, rec := range records {
		if rec.ID == "" {
			t.Fatalf("expected store-assigned id, got empty")
		}
		if rec.CreatedAt.IsZero() {
			t.Fatalf("expected store-assigned timestamp")
		}
		if rec.UserID != "user-a" {
			t.Fatalf("expected owner user-a, got %q", rec.UserID)
		}
	}

	n, err := st.CountRecords(ctx, "user-a")
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	if n != len(drafts) {
		t.Fatalf("expected %d persisted records, got %d", len(drafts), n)
	}
}

func TestAtomicInsertRejectsWholeBatch(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	drafts := []record.Draft{
		benchPressDraft(),
		{ExerciseName: "squat", Sets: 3, Reps: []int{5, 5, 5}, WeightsKg: []float64{100}},
	}
	_, err := st.AtomicInsert(ctx, "user-a", drafts)

	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	var invErr *record.InvariantError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected wrapped InvariantError, got %v", err)
	}

	n, err := st.CountRecords(ctx, "user-a")
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected zero persisted records after rejected batch, got %d", n)
	}
}

func TestScopedQueryRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.AtomicInsert(ctx, "user-a", []record.Draft{benchPressDraft()}); err != nil {
		t.Fatalf("atomic insert: %v", err)
	}

	query := fmt.Sprintf(
		"SELECT exercise_name, sets, reps, weights FROM %s WHERE user_id = 'user-a'",
		record.TableName,
	)
	rows, err := st.RunScopedQuery(ctx, "user-a", query)
	if err != nil {
		t.Fatalf("run scoped query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	got := map[string]any{}
	for i, col := range row.Columns {
		got[col] = row.Values[i]
	}
	if got["exercise_name"] != "bench press" {
		t.Fatalf("unexpected exercise_name: %v", got["exercise_name"])
	}
	if got["sets"] != int64(3) {
		t.Fatalf("unexpected sets: %v (%T)", got["sets"], got["sets"])
	}
	if got["reps"] != "[10,10,10]" {
		t.Fatalf("unexpected reps payload: %v", got["reps"])
	}
	if got["weights"] != "[60,60,60]" {
		t.Fatalf("unexpected weights payload: %v", got["weights"])
	}
}

func TestScopedQueryEmptyResultIsNotAnError(t *testing.T) {
	st := openTestStore(t)

	query := fmt.Sprintf("SELECT * FROM %s WHERE user_id = 'user-a'", record.TableName)
	rows, err := st.RunScopedQuery(context.Background(), "user-a", query)
	if err != nil {
		t.Fatalf("expected empty result, got error %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}

func TestScopedQueryIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.AtomicInsert(ctx, "user-a", []record.Draft{benchPressDraft()}); err != nil {
		t.Fatalf("atomic insert: %v", err)
	}

	query := fmt.Sprintf(
		"SELECT exercise_name, sets FROM %s WHERE user_id = 'user-a' ORDER BY created_at",
		record.TableName,
	)
	first, err := st.RunScopedQuery(ctx, "user-a", query)
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	second, err := st.RunScopedQuery(ctx, "user-a", query)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		for j := range first[i].Values {
			if first[i].Values[j] != second[i].Values[j] {
				t.Fatalf("row %d column %d differs: %v vs %v", i, j, first[i].Values[j], second[i].Values[j])
			}
		}
	}
}

func TestCrossUserIsolation(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.AtomicInsert(ctx, "user-a", []record.Draft{benchPressDraft()}); err != nil {
		t.Fatalf("insert for user-a: %v", err)
	}
	squat := record.Draft{ExerciseName: "squat", Sets: 5, Reps: []int{5, 5, 5, 5, 5}, WeightsKg: []float64{120, 120, 120, 120, 120}}
	if _, err := st.AtomicInsert(ctx, "user-b", []record.Draft{squat}); err != nil {
		t.Fatalf("insert for user-b: %v", err)
	}

	query := fmt.Sprintf("SELECT user_id, exercise_name FROM %s WHERE user_id = 'user-a'", record.TableName)
	rows, err := st.RunScopedQuery(ctx, "user-a", query)
	if err != nil {
		t.Fatalf("run scoped query: %v", err)
	}
	for _, row := range rows {
		for i, col := range row.Columns {
			if col == "user_id" && row.Values[i] != "user-a" {
				t.Fatalf("query for user-a returned a row owned by %v", row.Values[i])
			}
		}
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly user-a's record, got %d rows", len(rows))
	}
}

func TestMalformedQueryFailsWithExecutionError(t *testing.T) {
	st := openTestStore(t)

	_, err := st.RunScopedQuery(context.Background(), "user-a", "SELECT nonsense FROM nowhere WHERE")
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
}

func TestRegisterChatUpserts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.RegisterChat(ctx, "user-a", 100); err != nil {
		t.Fatalf("register chat: %v", err)
	}
	if err := st.RegisterChat(ctx, "user-a", 200); err != nil {
		t.Fatalf("re-register chat: %v", err)
	}
	if err := st.RegisterChat(ctx, "user-b", 300); err != nil {
		t.Fatalf("register second chat: %v", err)
	}

	chats, err := st.ListChats(ctx)
	if err != nil {
		t.Fatalf("list chats: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].UserID != "user-a" || chats[0].ChatID != 200 {
		t.Fatalf("expected user-a chat updated to 200, got %+v", chats[0])
	}
	if chats[1].UserID != "user-b" || chats[1].ChatID != 300 {
		t.Fatalf("unexpected second chat: %+v", chats[1])
	}
}

func TestAtomicInsertEmptyBatch(t *testing.T) {
	st := openTestStore(t)

	records, err := st.AtomicInsert(context.Background(), "user-a", nil)
	if err != nil {
		t.Fatalf("empty batch should be a no-op, got %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
