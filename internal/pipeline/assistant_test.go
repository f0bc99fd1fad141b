package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liftlog-ai/liftlog/internal/store"
)

func openAssistantStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "liftlog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// Note in, question out, against a real sqlite store. The fake model
// scripts the extraction, synthesis, and summary responses in the order
// the pipeline calls them.
func TestAssistantNoteThenQuestion(t *testing.T) {
	st := openAssistantStore(t)
	completer := &fakeCompleter{responses: []string{
		benchPressJSON,
		"SELECT exercise_name, sets FROM exercise_records WHERE user_id = '42'",
		"You did 3 sets of bench press.",
	}}
	a := NewAssistant(completer, st)

	reply, err := a.HandleNote(context.Background(), "42", "3x10 bench press at 60kg")
	if err != nil {
		t.Fatalf("handle note: %v", err)
	}
	if !strings.Contains(reply, "Saved 1 exercise") {
		t.Fatalf("unexpected confirmation %q", reply)
	}
	if !strings.Contains(reply, "bench press") || !strings.Contains(reply, "reps 10/10/10") || !strings.Contains(reply, "weights 60/60/60 kg") {
		t.Fatalf("confirmation does not describe the record: %q", reply)
	}

	answer, err := a.HandleQuestion(context.Background(), "42", "what did I do?")
	if err != nil {
		t.Fatalf("handle question: %v", err)
	}
	if answer != "You did 3 sets of bench press." {
		t.Fatalf("unexpected answer %q", answer)
	}
	// The summary prompt must carry the persisted row, not the draft.
	if !strings.Contains(completer.lastUser, "exercise_name=bench press") {
		t.Fatalf("summary prompt missing stored row:\n%s", completer.lastUser)
	}
}

func TestAssistantEmptyNoteExtractionSavesNothing(t *testing.T) {
	st := openAssistantStore(t)
	a := NewAssistant(&fakeCompleter{responses: []string{"[]"}}, st)

	reply, err := a.HandleNote(context.Background(), "42", "rest day")
	if err != nil {
		t.Fatalf("handle note: %v", err)
	}
	if reply != NothingToSave {
		t.Fatalf("expected %q, got %q", NothingToSave, reply)
	}

	n, err := st.CountRecords(context.Background(), "42")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty store, found %d records", n)
	}
}

func TestAssistantQuestionAgainstEmptyStore(t *testing.T) {
	st := openAssistantStore(t)
	completer := &fakeCompleter{responses: []string{
		"SELECT * FROM exercise_records WHERE user_id = '42'",
	}}
	a := NewAssistant(completer, st)

	answer, err := a.HandleQuestion(context.Background(), "42", "what did I do?")
	if err != nil {
		t.Fatalf("handle question: %v", err)
	}
	if answer != NoMatchingRecords {
		t.Fatalf("expected %q, got %q", NoMatchingRecords, answer)
	}
	if completer.calls != 1 {
		t.Fatalf("empty result must skip the summary call, saw %d calls", completer.calls)
	}
}

func TestAssistantBlocksUnscopedSynthesis(t *testing.T) {
	st := openAssistantStore(t)
	completer := &fakeCompleter{responses: []string{
		"DELETE FROM exercise_records WHERE user_id = '42'",
	}}
	a := NewAssistant(completer, st)

	_, err := a.HandleQuestion(context.Background(), "42", "wipe my log")
	var unsafeErr *UnsafeQueryError
	if !errors.As(err, &unsafeErr) {
		t.Fatalf("expected UnsafeQueryError, got %v", err)
	}
}

func TestAssistantSuggestUsesStoredRows(t *testing.T) {
	st := openAssistantStore(t)
	seed := &fakeCompleter{responses: []string{benchPressJSON}}
	if _, err := NewAssistant(seed, st).HandleNote(context.Background(), "42", "3x10 bench at 60kg"); err != nil {
		t.Fatalf("seed note: %v", err)
	}

	completer := &fakeCompleter{responses: []string{
		"SELECT exercise_name FROM exercise_records WHERE user_id = '42'",
		"Add an overhead press day.",
	}}
	a := NewAssistant(completer, st)

	answer, err := a.HandleSuggest(context.Background(), "42", "balance my upper body work")
	if err != nil {
		t.Fatalf("handle suggest: %v", err)
	}
	if answer != "Add an overhead press day." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if !strings.Contains(completer.lastUser, "Goal: balance my upper body work") {
		t.Fatalf("suggest prompt missing the goal:\n%s", completer.lastUser)
	}
}

func TestDescribeRecordVariants(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{
			"bodyweight sets",
			`[{"exercise_name":"pull ups","sets":3,"reps":[8,8,6],"weights_kg":[],"bodyweight":true,"duration_seconds":0,"notes":""}]`,
			[]string{"pull ups", "3 sets", "reps 8/8/6", "bodyweight"},
		},
		{
			"timed cardio with notes",
			`[{"exercise_name":"treadmill","sets":0,"reps":[],"weights_kg":[],"bodyweight":false,"duration_seconds":1800,"notes":"easy pace"}]`,
			[]string{"treadmill", "30 min", "notes: easy pace"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := openAssistantStore(t)
			a := NewAssistant(&fakeCompleter{responses: []string{tc.json}}, st)

			reply, err := a.HandleNote(context.Background(), "42", "logged a workout")
			if err != nil {
				t.Fatalf("handle note: %v", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(reply, want) {
					t.Fatalf("confirmation missing %q: %q", want, reply)
				}
			}
		})
	}
}
