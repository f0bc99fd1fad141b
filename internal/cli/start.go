package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/liftlog-ai/liftlog/internal/channels"
	"github.com/liftlog-ai/liftlog/internal/commands"
	"github.com/liftlog-ai/liftlog/internal/config"
	"github.com/liftlog-ai/liftlog/internal/llm"
	"github.com/liftlog-ai/liftlog/internal/logging"
	"github.com/liftlog-ai/liftlog/internal/pipeline"
	"github.com/liftlog-ai/liftlog/internal/scheduler"
	"github.com/liftlog-ai/liftlog/internal/store"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the Telegram bot server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.ValidateStartup(cfg); err != nil {
				return err
			}

			llmCfg := cfg.DefaultLLM()
			logging.Logger().Info(
				"starting server",
				"provider", llmCfg.Provider,
				"model", llmCfg.Model,
				"db", cfg.Store.Path,
			)

			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			completer, err := llm.NewCompleterFromConfig(llmCfg)
			if err != nil {
				return err
			}

			assistant := pipeline.NewAssistant(completer, st)
			handler := commands.New(assistant)

			pidFilePath := cfg.PIDPath()
			if err := os.WriteFile(pidFilePath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
				return fmt.Errorf("write pid file %q: %w", pidFilePath, err)
			}
			defer os.Remove(pidFilePath)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listener := channels.NewTelegram(cfg.TelegramChannel().Token, st)

			if cfg.Recap.Enabled {
				recap := scheduler.NewService(cfg.Recap.Schedule, assistant, st, listener)
				if err := recap.Start(runCtx); err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := recap.Stop(shutdownCtx); err != nil {
						logging.Logger().Warn("recap scheduler shutdown", "err", err)
					}
				}()
			}

			if err := listener.Listen(runCtx, handler); err != nil {
				return err
			}
			logging.Logger().Info("server stopped")
			return nil
		},
	}
}
