package pipeline

import "fmt"

// ParseError reports extraction output that did not conform to the
// record draft schema. Nothing is persisted when it occurs.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse extraction output: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse extraction output: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SynthesisError reports a malformed or empty synthesized query, caught
// before the executor sees it.
type SynthesisError struct {
	Reason string
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize query: %s", e.Reason)
}

// UnsafeQueryError reports a safety-policy violation. The offending
// query never reaches the store.
type UnsafeQueryError struct {
	Reason string
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("unsafe query rejected: %s", e.Reason)
}
