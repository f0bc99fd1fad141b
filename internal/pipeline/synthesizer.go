package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liftlog-ai/liftlog/internal/llm"
	"github.com/liftlog-ai/liftlog/internal/record"
)

const synthesizeSystemPrompt = `You generate SQLite queries over a user's exercise log.
Reply with exactly one read-only SELECT statement and nothing else: no comments, no prose, no markdown.
The query must fetch rows for the given user only, by filtering on their user_id literal.
Match several values with an IN list, never with OR, and never use UNION or other compound selects.`

// QuerySpec is the model-produced query artifact: raw SQL text plus the
// user it was generated for. Its lifecycle is one request. The executor,
// never the synthesizer, is trusted to enforce that it is read-only and
// scoped to that user.
type QuerySpec struct {
	SQL    string
	UserID string
}

// Synthesizer turns a natural-language question into a scoped QuerySpec
// via a single model call.
type Synthesizer struct {
	completer llm.Completer
}

// NewSynthesizer creates a Synthesizer over the given model capability.
func NewSynthesizer(completer llm.Completer) *Synthesizer {
	return &Synthesizer{completer: completer}
}

// Synthesize produces a QuerySpec for the question. The returned text
// must be non-empty and a single statement; anything else fails with a
// SynthesisError before reaching the executor.
func (s *Synthesizer) Synthesize(ctx context.Context, userID, question string) (QuerySpec, error) {
	if strings.TrimSpace(question) == "" {
		return QuerySpec{}, errors.New("question text is required")
	}
	if strings.TrimSpace(userID) == "" {
		return QuerySpec{}, errors.New("user id is required")
	}

	prompt := fmt.Sprintf(
		"%s\nThe user id is '%s'. Generate a SQL query to answer the following question.\n\nQuestion: %s",
		record.SchemaDescription(userID), userID, question,
	)
	raw, err := s.completer.Complete(ctx, synthesizeSystemPrompt, prompt)
	if err != nil {
		return QuerySpec{}, fmt.Errorf("synthesis model call: %w", err)
	}

	sql := strings.TrimSpace(stripFences(raw))
	if sql == "" {
		return QuerySpec{}, &SynthesisError{Reason: "model returned no query"}
	}

	// A single trailing terminator is fine; an interior one means a
	// multi-statement script.
	sql = strings.TrimSuffix(sql, ";")
	if strings.ContainsRune(sql, ';') {
		return QuerySpec{}, &SynthesisError{Reason: "model returned more than one statement"}
	}

	return QuerySpec{SQL: sql, UserID: userID}, nil
}
