package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/liftlog-ai/liftlog/internal/llm"
	"github.com/liftlog-ai/liftlog/internal/logging"
	"github.com/liftlog-ai/liftlog/internal/record"
	"github.com/liftlog-ai/liftlog/internal/store"
)

// NothingToSave is the reply for notes that mention no exercises. The
// transport surfaces it as-is; an empty extraction is not a failure.
const NothingToSave = "I didn't find any exercises in that note, so nothing was saved."

// Recorder is the store surface the note path needs.
type Recorder interface {
	AtomicInsert(ctx context.Context, userID string, drafts []record.Draft) ([]record.Record, error)
}

// Assistant composes the pipeline stages behind the three command
// operations. One Assistant serves all users; per-request state lives in
// arguments, never in the struct.
type Assistant struct {
	extractor   *Extractor
	synthesizer *Synthesizer
	executor    *Executor
	summarizer  *Summarizer
	recorder    Recorder
}

// Store is the full persistence surface the assistant needs.
type Store interface {
	Recorder
	QueryRunner
}

// NewAssistant wires the pipeline stages over one model capability and
// one store handle. The store handle is constructed once at process
// start and threaded through; there is no ambient state.
func NewAssistant(completer llm.Completer, st Store) *Assistant {
	return &Assistant{
		extractor:   NewExtractor(completer),
		synthesizer: NewSynthesizer(completer),
		executor:    NewExecutor(st),
		summarizer:  NewSummarizer(completer),
		recorder:    st,
	}
}

// HandleNote extracts records from the note and persists them
// atomically, returning a confirmation listing the saved fields.
func (a *Assistant) HandleNote(ctx context.Context, userID, text string) (string, error) {
	drafts, err := a.extractor.Extract(ctx, text)
	if err != nil {
		return "", err
	}
	if len(drafts) == 0 {
		return NothingToSave, nil
	}

	records, err := a.recorder.AtomicInsert(ctx, userID, drafts)
	if err != nil {
		return "", err
	}

	logging.Logger().Info("note saved", "user_id", userID, "records", len(records))
	return formatConfirmation(records), nil
}

// HandleQuestion synthesizes a scoped query for the question, runs it
// through the safety gate, and summarizes the result.
func (a *Assistant) HandleQuestion(ctx context.Context, userID, text string) (string, error) {
	rows, err := a.fetch(ctx, userID, text)
	if err != nil {
		return "", err
	}
	return a.summarizer.Summarize(ctx, text, rows)
}

// HandleSuggest fetches records relevant to the stated goal and asks
// the model for training suggestions grounded in them.
func (a *Assistant) HandleSuggest(ctx context.Context, userID, text string) (string, error) {
	rows, err := a.fetch(ctx, userID, text)
	if err != nil {
		return "", err
	}
	return a.summarizer.Suggest(ctx, text, rows)
}

func (a *Assistant) fetch(ctx context.Context, userID, text string) ([]store.Row, error) {
	spec, err := a.synthesizer.Synthesize(ctx, userID, text)
	if err != nil {
		return nil, err
	}
	rows, err := a.executor.ValidateAndRun(ctx, spec)
	if err != nil {
		return nil, err
	}
	logging.Logger().Info("query executed", "user_id", userID, "rows", len(rows))
	return rows, nil
}

func formatConfirmation(records []record.Record) string {
	var b strings.Builder
	if len(records) == 1 {
		b.WriteString("Saved 1 exercise:\n")
	} else {
		fmt.Fprintf(&b, "Saved %d exercises:\n", len(records))
	}
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. %s", i+1, describeRecord(rec))
		if i < len(records)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func describeRecord(rec record.Record) string {
	var parts []string
	if rec.Sets > 0 {
		parts = append(parts, fmt.Sprintf("%d sets", rec.Sets))
	}
	if len(rec.Reps) > 0 {
		parts = append(parts, "reps "+joinInts(rec.Reps))
	}
	switch {
	case rec.Bodyweight:
		parts = append(parts, "bodyweight")
	case len(rec.Weights) > 0:
		parts = append(parts, "weights "+joinFloats(rec.Weights)+" kg")
	}
	if rec.DurationSeconds > 0 {
		parts = append(parts, formatDuration(rec.DurationSeconds))
	}
	if rec.Notes != "" {
		parts = append(parts, "notes: "+rec.Notes)
	}
	if len(parts) == 0 {
		return rec.ExerciseName
	}
	return rec.ExerciseName + " — " + strings.Join(parts, ", ")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, "/")
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	}
	return strings.Join(parts, "/")
}

func formatDuration(seconds int) string {
	if seconds%60 == 0 {
		return fmt.Sprintf("%d min", seconds/60)
	}
	return fmt.Sprintf("%d sec", seconds)
}
