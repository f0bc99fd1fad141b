// Package pipeline implements the text-to-structure-to-text core: note
// extraction, query synthesis, safe execution, and result
// summarization, composed behind the Assistant facade.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/liftlog-ai/liftlog/internal/llm"
	"github.com/liftlog-ai/liftlog/internal/record"
)

const extractSystemPrompt = `You turn free-text workout notes into structured exercise records.
Extract every distinct exercise mentioned and reply with a JSON array only, one object per exercise, in the order mentioned. No prose, no markdown.

Each object has exactly these fields:
- "exercise_name": lowercase exercise name
- "sets": integer number of sets, 0 for pure-duration work
- "reps": array of integers, one rep count per set; empty when not applicable
- "weights_kg": array of numbers in kilograms, one per set, aligned with reps; convert other units to kg
- "bodyweight": true when the exercise implies resistance but no weight is stated and it is a bodyweight-type movement; weights_kg must then be empty
- "duration_seconds": integer duration in seconds, 0 when not applicable; convert other units to seconds
- "notes": free-text remarks from the note, empty string if none

Leave genuinely absent fields empty rather than guessing. If the note describes no exercises, reply with [].`

// Extractor turns one free-text note into ordered record drafts via a
// single model call.
type Extractor struct {
	completer llm.Completer
}

// NewExtractor creates an Extractor over the given model capability.
func NewExtractor(completer llm.Completer) *Extractor {
	return &Extractor{completer: completer}
}

// Extract parses the note into validated, normalized drafts. A note
// describing zero exercises yields an empty slice, not an error. Any
// schema or invariant violation in the model output fails the whole
// call with a ParseError; no partial batches are produced.
func (e *Extractor) Extract(ctx context.Context, note string) ([]record.Draft, error) {
	if strings.TrimSpace(note) == "" {
		return nil, errors.New("note text is required")
	}

	raw, err := e.completer.Complete(ctx, extractSystemPrompt, "Note: "+note)
	if err != nil {
		return nil, fmt.Errorf("extraction model call: %w", err)
	}

	drafts, err := decodeDrafts(raw)
	if err != nil {
		return nil, err
	}

	for i := range drafts {
		drafts[i].Normalize()
		if err := drafts[i].Validate(); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("draft %d violates record invariants", i+1), Err: err}
		}
	}
	return drafts, nil
}

func decodeDrafts(raw string) ([]record.Draft, error) {
	text := stripFences(raw)
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Reason: "model returned no content"}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var drafts []record.Draft
	if err := dec.Decode(&drafts); err != nil {
		return nil, &ParseError{Reason: "model output is not a draft array", Err: err}
	}
	// Trailing content after the array means the model added prose.
	if err := checkEOF(dec); err != nil {
		return nil, err
	}
	return drafts, nil
}

func checkEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		return &ParseError{Reason: "trailing content after draft array"}
	}
	return nil
}

// stripFences removes a surrounding markdown code fence if present.
// Models add fences despite instructions; removing them is shape
// normalization, not content coercion.
func stripFences(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
