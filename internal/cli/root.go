// Package cli wires Cobra subcommands to application dependencies; it
// is a thin controller with no business logic.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/liftlog-ai/liftlog/internal/config"
	"github.com/liftlog-ai/liftlog/internal/logging"
)

// NewRootCmd creates the root command and registers all subcommands.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "liftlog",
		Short: "Conversational exercise log over Telegram",
		// Let main handle fatal error rendering through structured logs.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if verbose {
				logging.SetLevel(slog.LevelInfo)
			} else {
				logging.SetLevel(slog.LevelWarn)
			}

			// The config command only reads and prints merged config and
			// should not trigger first-run onboarding behavior.
			if cmd.Name() == "config" {
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return ensureFirstRun(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to `liftlog start` when no subcommand is provided.
			startCmd, _, err := cmd.Find([]string{"start"})
			if err != nil {
				return err
			}
			startCmd.SetContext(cmd.Context())
			return startCmd.RunE(startCmd, args)
		},
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (info level)")

	return root
}

// ensureFirstRun writes the bootstrap config on first launch and exits
// cleanly so the user can fill in tokens before starting the server.
func ensureFirstRun(cmd *cobra.Command, cfg *config.Config) error {
	configPath := cfg.ConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config file %q: %w", configPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create home dir: %w", err)
	}
	toml, err := config.DefaultUserConfigTOML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, []byte(toml), 0o600); err != nil {
		return fmt.Errorf("write config file %q: %w", configPath, err)
	}

	// First-run bootstrap is an onboarding path, not a fatal error.
	if _, err := fmt.Fprintf(
		cmd.ErrOrStderr(),
		"First run setup complete.\nEdit config file: %s\nRestart liftlog.\n",
		configPath,
	); err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
