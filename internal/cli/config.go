package cli

import (
	"github.com/spf13/cobra"

	"github.com/liftlog-ai/liftlog/internal/config"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the merged configuration as TOML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.Write(cmd.OutOrStdout())
		},
	}
}
