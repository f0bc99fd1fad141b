// Package llm exposes the text-generation capability as a single
// stateless request/response operation backed by a configurable
// provider. No conversation state is retained between calls.
package llm

import "context"

// Completer issues one completion request against an LLM backend.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
