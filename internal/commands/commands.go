// Package commands provides channel-agnostic slash command handling and
// the error-to-reply boundary: every pipeline failure is converted to a
// fixed human-readable reply so backend details never leak to the user.
package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/liftlog-ai/liftlog/internal/logging"
	"github.com/liftlog-ai/liftlog/internal/pipeline"
	"github.com/liftlog-ai/liftlog/internal/runtime"
	"github.com/liftlog-ai/liftlog/internal/store"
)

const helpText = `I keep your exercise log. Commands:
/note <workout> — save a free-text workout note as structured records
/query <question> — ask a question about your logged workouts
/suggest <goal> — get training suggestions based on your log
/help — show this message`

const (
	replyParseFailed  = "I couldn't turn that note into exercise records. Nothing was saved; try rephrasing it."
	replyBadQuestion  = "I couldn't build a query for that question. Try asking it differently."
	replyUnsafeQuery  = "That question produced a query I won't run. Nothing was executed."
	replyStoreFailed  = "Something went wrong reading your log. Please try again."
	replySaveFailed   = "Your note couldn't be saved. Nothing was stored; please try again."
	replyModelFailed  = "The assistant is unavailable right now. Please try again in a moment."
	replyMissingNote  = "Usage: /note <workout description>"
	replyMissingQuery = "Usage: /query <question about your log>"
	replyMissingGoal  = "Usage: /suggest <training goal>"
)

// Assistant is the pipeline surface the command router drives.
type Assistant interface {
	HandleNote(ctx context.Context, userID, text string) (string, error)
	HandleQuestion(ctx context.Context, userID, text string) (string, error)
	HandleSuggest(ctx context.Context, userID, text string) (string, error)
}

// Handler routes slash commands to the assistant. It implements
// runtime.Handler and is the error boundary: no error escapes as a raw
// message and none is fatal.
type Handler struct {
	assistant Assistant
}

// New creates the command handler.
func New(assistant Assistant) *Handler {
	return &Handler{assistant: assistant}
}

var _ runtime.Handler = (*Handler)(nil)

// HandleMessage executes one inbound command and writes exactly one reply.
func (h *Handler) HandleMessage(ctx context.Context, w runtime.ResponseWriter, msg *runtime.Message) error {
	if w == nil {
		return errors.New("response writer is required")
	}
	if msg == nil {
		return errors.New("message is required")
	}
	if h.assistant == nil {
		return errors.New("assistant is required")
	}

	name, arg := splitCommand(msg.Text)
	switch name {
	case "/start", "/help":
		return w.WriteMessage(ctx, helpText)
	case "/note":
		if arg == "" {
			return w.WriteMessage(ctx, replyMissingNote)
		}
		return h.reply(ctx, w, msg.UserID, arg, h.assistant.HandleNote)
	case "/query":
		if arg == "" {
			return w.WriteMessage(ctx, replyMissingQuery)
		}
		return h.reply(ctx, w, msg.UserID, arg, h.assistant.HandleQuestion)
	case "/suggest":
		if arg == "" {
			return w.WriteMessage(ctx, replyMissingGoal)
		}
		return h.reply(ctx, w, msg.UserID, arg, h.assistant.HandleSuggest)
	case "":
		if arg == "" {
			return nil
		}
		return w.WriteMessage(ctx, helpText)
	default:
		return w.WriteMessage(ctx, helpText)
	}
}

type operation func(ctx context.Context, userID, text string) (string, error)

func (h *Handler) reply(ctx context.Context, w runtime.ResponseWriter, userID, arg string, op operation) error {
	answer, err := op(ctx, userID, arg)
	if err != nil {
		logging.Logger().Error("command failed", "user_id", userID, "err", err)
		return w.WriteMessage(ctx, replyFor(err))
	}
	return w.WriteMessage(ctx, answer)
}

// replyFor maps a pipeline error to its fixed user-facing reply.
func replyFor(err error) string {
	var parseErr *pipeline.ParseError
	var synthErr *pipeline.SynthesisError
	var unsafeErr *pipeline.UnsafeQueryError
	var execErr *store.ExecutionError
	var persistErr *store.PersistenceError

	switch {
	case errors.As(err, &parseErr):
		return replyParseFailed
	case errors.As(err, &synthErr):
		return replyBadQuestion
	case errors.As(err, &unsafeErr):
		return replyUnsafeQuery
	case errors.As(err, &execErr):
		return replyStoreFailed
	case errors.As(err, &persistErr):
		return replySaveFailed
	default:
		return replyModelFailed
	}
}

// splitCommand separates the leading slash command from its argument.
// Telegram appends "@botname" to commands in group chats; strip it.
func splitCommand(text string) (name, arg string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", trimmed
	}
	name, arg, _ = strings.Cut(trimmed, " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(arg)
}
