package channels

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/liftlog-ai/liftlog/internal/logging"
	"github.com/liftlog-ai/liftlog/internal/runtime"
)

type telegramSendMessageFunc func(context.Context, *bot.SendMessageParams) (*models.Message, error)
type telegramSendChatActionFunc func(context.Context, *bot.SendChatActionParams) (bool, error)

// ChatRegistry remembers the latest chat per user so scheduled recaps
// can reach them between messages.
type ChatRegistry interface {
	RegisterChat(ctx context.Context, userID string, chatID int64) error
}

var _ runtime.Listener = (*TelegramListener)(nil)

// TelegramListener receives Telegram updates and dispatches each
// message to the command handler, serialized per user.
type TelegramListener struct {
	token    string
	registry ChatRegistry

	sendMessage    telegramSendMessageFunc
	sendChatAction telegramSendChatActionFunc
}

// NewTelegram creates a Telegram listener over one bot token.
func NewTelegram(token string, registry ChatRegistry) *TelegramListener {
	return &TelegramListener{token: token, registry: registry}
}

// Listen starts long-polling Telegram and dispatches inbound messages
// until the context is canceled.
func (t *TelegramListener) Listen(ctx context.Context, handler runtime.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	if strings.TrimSpace(t.token) == "" {
		return errors.New("telegram token is required")
	}

	dispatcher := runtime.NewDispatcher(handler, defaultDispatchQueue)
	defaultHandler := func(updateCtx context.Context, _ *bot.Bot, update *models.Update) {
		if update == nil || update.Message == nil || update.Message.From == nil {
			return
		}
		t.handleInboundMessage(updateCtx, dispatcher, update.Message)
	}

	b, err := bot.New(strings.TrimSpace(t.token), bot.WithDefaultHandler(defaultHandler))
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("fetch telegram bot profile: %w", err)
	}
	logging.Logger().Info(fmt.Sprintf("Connected to Telegram Bot @%s", strings.TrimSpace(me.Username)))

	t.sendMessage = b.SendMessage
	t.sendChatAction = b.SendChatAction

	if err := dispatcher.Start(ctx); err != nil {
		return err
	}
	defer dispatcher.Wait()

	go b.Start(ctx)
	<-ctx.Done()
	return nil
}

func (t *TelegramListener) handleInboundMessage(
	ctx context.Context,
	dispatcher *runtime.Dispatcher,
	msg *models.Message,
) {
	if msg == nil || msg.From == nil {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	text := strings.TrimSpace(msg.Text)
	logging.Logger().Info(
		"telegram inbound message",
		"user_id", userID,
		"text", messagePreview(text, 100),
	)

	if t.registry != nil {
		if err := t.registry.RegisterChat(ctx, userID, msg.Chat.ID); err != nil {
			logging.Logger().Warn("failed to register chat", "user_id", userID, "err", err)
		}
	}

	// Model round trips take a few seconds; show typing in the meantime.
	t.sendTypingAction(ctx, msg.Chat.ID)

	writer := &telegramWriter{listener: t, chatID: msg.Chat.ID}
	if err := dispatcher.Enqueue(ctx, &runtime.Message{UserID: userID, Text: text}, writer); err != nil {
		logging.Logger().Warn("telegram enqueue failed", "user_id", userID, "err", err)
	}
}

type telegramWriter struct {
	listener *TelegramListener
	chatID   int64
}

func (w *telegramWriter) WriteMessage(ctx context.Context, text string) error {
	if w == nil || w.listener == nil {
		return errors.New("telegram sender is not configured")
	}
	return w.listener.SendTo(ctx, w.chatID, text)
}

// SendTo delivers one message to a chat. Used by the response writer
// and by the recap scheduler.
func (t *TelegramListener) SendTo(ctx context.Context, chatID int64, text string) error {
	send := t.sendMessage
	if send == nil {
		return errors.New("telegram bot is not connected")
	}
	_, err := send(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}

func (t *TelegramListener) sendTypingAction(ctx context.Context, chatID int64) {
	send := t.sendChatAction
	if send == nil {
		return
	}
	actionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	send(actionCtx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
}

func messagePreview(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
