package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/liftlog-ai/liftlog/internal/record"
	"github.com/liftlog-ai/liftlog/internal/store"
)

// QueryRunner is the store surface the executor needs.
type QueryRunner interface {
	RunScopedQuery(ctx context.Context, userID, query string) ([]store.Row, error)
}

// Executor is the gatekeeper between an untrusted QuerySpec and the
// store. It never trusts that the synthesizer honored the read-only,
// user-scoped instruction.
type Executor struct {
	runner QueryRunner
}

// NewExecutor creates an Executor over the given store.
func NewExecutor(runner QueryRunner) *Executor {
	return &Executor{runner: runner}
}

var (
	// Data- and schema-modifying keywords, matched on word boundaries so
	// column names like created_at do not trip the check.
	modifyingKeywords = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate)\b`)

	// Tokens that can widen a user_id filter past the caller: a
	// disjunction bypasses it, a compound select appends rows that never
	// passed it. IN lists cover legitimate disjunctions, so OR has no
	// safe use here.
	wideningKeywords = regexp.MustCompile(`(?i)\b(or|union|except|intersect)\b`)

	// A negated user_id comparison inverts the scope it appears to carry.
	negatedScope = regexp.MustCompile(`(?i)\bnot\b\s*\(*\s*user_id\b`)

	tableRefs    = regexp.MustCompile(`(?i)\b(?:from|join)\s+["']?([A-Za-z_][A-Za-z0-9_]*)["']?`)
	userIDChecks = regexp.MustCompile(`(?i)\buser_id\b\s*=\s*'?([^'\s;)]+)'?`)
)

// ValidateAndRun checks the safety policy and, on success, delegates to
// the store. Checks run in order and the first violation wins; a failed
// check means the query is never sent to the store. Backend failures
// surface as the store's ExecutionError with no retry.
func (e *Executor) ValidateAndRun(ctx context.Context, spec QuerySpec) ([]store.Row, error) {
	sql := strings.TrimSpace(spec.SQL)
	if sql == "" {
		return nil, &UnsafeQueryError{Reason: "query text is empty"}
	}

	if m := modifyingKeywords.FindString(sql); m != "" {
		return nil, &UnsafeQueryError{Reason: fmt.Sprintf("modifying keyword %q", strings.ToUpper(m))}
	}

	if m := wideningKeywords.FindString(sql); m != "" {
		return nil, &UnsafeQueryError{Reason: fmt.Sprintf("keyword %q can widen the user scope", strings.ToUpper(m))}
	}
	if negatedScope.MatchString(sql) {
		return nil, &UnsafeQueryError{Reason: "negated user_id comparison"}
	}

	tables := tableRefs.FindAllStringSubmatch(sql, -1)
	if len(tables) == 0 {
		return nil, &UnsafeQueryError{Reason: "query references no table"}
	}
	for _, m := range tables {
		if !strings.EqualFold(m[1], record.TableName) {
			return nil, &UnsafeQueryError{Reason: fmt.Sprintf("query references table %q", m[1])}
		}
	}

	// The synthesizer is instructed to echo the user id literal; every
	// echoed literal must match the requesting user.
	scopes := userIDChecks.FindAllStringSubmatch(sql, -1)
	if len(scopes) == 0 {
		return nil, &UnsafeQueryError{Reason: "query is not filtered by user_id"}
	}
	for _, m := range scopes {
		if m[1] != spec.UserID {
			return nil, &UnsafeQueryError{Reason: fmt.Sprintf("query is scoped to user %q, not the caller", m[1])}
		}
	}

	return e.runner.RunScopedQuery(ctx, spec.UserID, sql)
}
