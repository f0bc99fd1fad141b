package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/liftlog-ai/liftlog/internal/llm"
	"github.com/liftlog-ai/liftlog/internal/store"
)

// NoMatchingRecords is the fixed reply for queries that match nothing.
// The empty case never calls the model, so it is deterministic.
const NoMatchingRecords = "No matching records found."

const summarizeSystemPrompt = `You summarize exercise-log query results for the user who asked.
Answer the user's question from the rows provided, compact and human readable. Do not invent data that is not in the rows.`

const suggestSystemPrompt = `You are a training advisor. Using the user's logged exercise rows as context, give practical suggestions for their stated goal. Ground every suggestion in the rows provided.`

// Summarizer turns query result rows plus the original question into a
// natural-language answer via a single model call.
type Summarizer struct {
	completer llm.Completer
}

// NewSummarizer creates a Summarizer over the given model capability.
func NewSummarizer(completer llm.Completer) *Summarizer {
	return &Summarizer{completer: completer}
}

// Summarize answers the question from the rows. Empty rows return the
// fixed no-match text with zero model calls; an empty model response
// falls back to the same text so the user never gets nothing.
func (s *Summarizer) Summarize(ctx context.Context, question string, rows []store.Row) (string, error) {
	return s.respond(ctx, summarizeSystemPrompt, "Question: "+question, rows)
}

// Suggest produces training suggestions for the goal, grounded in the
// rows. Same empty-case contract as Summarize.
func (s *Summarizer) Suggest(ctx context.Context, goal string, rows []store.Row) (string, error) {
	return s.respond(ctx, suggestSystemPrompt, "Goal: "+goal, rows)
}

func (s *Summarizer) respond(ctx context.Context, system, request string, rows []store.Row) (string, error) {
	if len(rows) == 0 {
		return NoMatchingRecords, nil
	}

	prompt := fmt.Sprintf("%s\n\nRows:\n%s", request, renderRows(rows))
	answer, err := s.completer.Complete(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("summary model call: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return NoMatchingRecords, nil
	}
	return strings.TrimSpace(answer), nil
}

func renderRows(rows []store.Row) string {
	var b strings.Builder
	for i, row := range rows {
		fmt.Fprintf(&b, "%d.", i+1)
		for j, col := range row.Columns {
			fmt.Fprintf(&b, " %s=%v", col, row.Values[j])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
