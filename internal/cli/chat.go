package cli

import (
	"github.com/spf13/cobra"

	"github.com/liftlog-ai/liftlog/internal/channels"
	"github.com/liftlog-ai/liftlog/internal/commands"
	"github.com/liftlog-ai/liftlog/internal/config"
	"github.com/liftlog-ai/liftlog/internal/llm"
	"github.com/liftlog-ai/liftlog/internal/pipeline"
	"github.com/liftlog-ai/liftlog/internal/store"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			llmCfg := cfg.DefaultLLM()
			if err := llmCfg.Validate(); err != nil {
				return err
			}

			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			completer, err := llm.NewCompleterFromConfig(llmCfg)
			if err != nil {
				return err
			}

			handler := commands.New(pipeline.NewAssistant(completer, st))
			listener := channels.NewCLI(cmd.InOrStdin(), cmd.OutOrStdout())
			return listener.Listen(cmd.Context(), handler)
		},
	}
}
