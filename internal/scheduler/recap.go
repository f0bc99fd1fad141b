// Package scheduler runs the periodic training recap: on each tick it
// replays the question pipeline for every known user and delivers the
// summary to their latest chat.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/liftlog-ai/liftlog/internal/logging"
	"github.com/liftlog-ai/liftlog/internal/store"
)

const recapQuestion = "Summarize my workouts from the last 7 days: exercises, total sets, and notable weights or durations."

// Questioner is the pipeline surface the recap needs.
type Questioner interface {
	HandleQuestion(ctx context.Context, userID, text string) (string, error)
}

// Sender delivers one message to a chat.
type Sender interface {
	SendTo(ctx context.Context, chatID int64, text string) error
}

// ChatLister enumerates known user/chat associations.
type ChatLister interface {
	ListChats(ctx context.Context) ([]store.Chat, error)
}

// Service owns the cron schedule for recap delivery.
type Service struct {
	schedule string
	pipeline Questioner
	chats    ChatLister
	sender   Sender

	cron    *cron.Cron
	started bool
}

// NewService creates a recap service on the given cron schedule.
func NewService(schedule string, pipeline Questioner, chats ChatLister, sender Sender) *Service {
	return &Service{
		schedule: schedule,
		pipeline: pipeline,
		chats:    chats,
		sender:   sender,
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Start registers the recap job and starts cron execution.
func (s *Service) Start(ctx context.Context) error {
	if s.started {
		return errors.New("scheduler already started")
	}
	if s.pipeline == nil || s.chats == nil || s.sender == nil {
		return errors.New("recap pipeline, chats, and sender are required")
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.RunRecaps(ctx)
	}); err != nil {
		return fmt.Errorf("register recap schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.started = true
	logging.Logger().Info("recap scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops cron and waits for an in-flight recap to finish or ctx
// cancellation.
func (s *Service) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}

	doneCtx := s.cron.Stop()
	s.started = false
	select {
	case <-doneCtx.Done():
		logging.Logger().Info("recap scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunRecaps delivers one recap to every known user. A failing user
// never blocks the others.
func (s *Service) RunRecaps(ctx context.Context) {
	chats, err := s.chats.ListChats(ctx)
	if err != nil {
		logging.Logger().Warn("recap chat listing failed", "err", err)
		return
	}

	for _, chat := range chats {
		answer, err := s.pipeline.HandleQuestion(ctx, chat.UserID, recapQuestion)
		if err != nil {
			logging.Logger().Warn("recap pipeline failed", "user_id", chat.UserID, "err", err)
			continue
		}
		if err := s.sender.SendTo(ctx, chat.ChatID, "Weekly recap:\n"+answer); err != nil {
			logging.Logger().Warn("recap delivery failed", "user_id", chat.UserID, "err", err)
			continue
		}
		logging.Logger().Info("recap delivered", "user_id", chat.UserID)
	}
}
