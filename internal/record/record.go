// Package record defines the exercise record domain model shared by the
// extraction pipeline and the store, including the draft invariants and
// the persisted SQL schema description.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Record is one persisted exercise entry. Records are immutable once
// stored; corrections are new records, never in-place edits.
type Record struct {
	ID              string
	UserID          string
	ExerciseName    string
	Sets            int
	Reps            []int
	Weights         []float64
	Bodyweight      bool
	DurationSeconds int
	Notes           string
	CreatedAt       time.Time
}

// Draft is an unpersisted candidate record produced by extraction. The
// store assigns identity and timestamps on insert. Field tags match the
// JSON shape the extraction model is instructed to emit.
type Draft struct {
	ExerciseName    string    `json:"exercise_name"`
	Sets            int       `json:"sets"`
	Reps            []int     `json:"reps"`
	WeightsKg       []float64 `json:"weights_kg"`
	Bodyweight      bool      `json:"bodyweight"`
	DurationSeconds int       `json:"duration_seconds"`
	Notes           string    `json:"notes"`
}

// InvariantError reports which draft invariant a candidate record broke.
type InvariantError struct {
	Field  string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invalid draft %s: %s", e.Field, e.Reason)
}

// Normalize lowercases and trims the free-text fields in place.
func (d *Draft) Normalize() {
	d.ExerciseName = strings.ToLower(strings.TrimSpace(d.ExerciseName))
	d.Notes = strings.TrimSpace(d.Notes)
}

// Validate checks the draft invariants. Weights carry kilograms; a
// bodyweight movement sets Bodyweight and leaves WeightsKg empty rather
// than omitting elements. An exercise with no set/rep structure must
// carry a duration instead.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.ExerciseName) == "" {
		return &InvariantError{Field: "exercise_name", Reason: "name is required"}
	}
	if d.Sets < 0 {
		return &InvariantError{Field: "sets", Reason: "sets must not be negative"}
	}
	if d.DurationSeconds < 0 {
		return &InvariantError{Field: "duration_seconds", Reason: "duration must not be negative"}
	}
	for _, r := range d.Reps {
		if r < 0 {
			return &InvariantError{Field: "reps", Reason: "rep counts must not be negative"}
		}
	}
	for _, w := range d.WeightsKg {
		if w < 0 {
			return &InvariantError{Field: "weights_kg", Reason: "weights must not be negative"}
		}
	}

	if d.Bodyweight {
		if len(d.WeightsKg) != 0 {
			return &InvariantError{Field: "weights_kg", Reason: "bodyweight drafts must not carry weights"}
		}
	} else if len(d.Reps) != len(d.WeightsKg) {
		return &InvariantError{
			Field:  "weights_kg",
			Reason: fmt.Sprintf("got %d weights for %d reps", len(d.WeightsKg), len(d.Reps)),
		}
	}

	if d.Sets > 0 && len(d.Reps) > 0 && len(d.Reps) != d.Sets {
		return &InvariantError{
			Field:  "reps",
			Reason: fmt.Sprintf("got %d rep entries for %d sets", len(d.Reps), d.Sets),
		}
	}

	// Pure-duration work (cardio) has no set/rep structure; without a
	// duration the note does not describe a loggable activity.
	if d.Sets == 0 && len(d.Reps) == 0 && d.DurationSeconds == 0 {
		return &InvariantError{Field: "duration_seconds", Reason: "duration is required when there are no sets"}
	}

	return nil
}
