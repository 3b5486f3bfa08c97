// Package config implements commands that manage the config file itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdweather-sync/internal/conf"
)

// SkipBootstrap marks commands that must run without a loaded config.
const SkipBootstrap = "skip-bootstrap"

// Command creates the config command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the bwsync config file",
	}
	cmd.AddCommand(initCommand())
	return cmd
}

func initCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "init [dir]",
		Short:       "Write the default config.yaml, keeping an existing file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{SkipBootstrap: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			} else if home, err := os.UserHomeDir(); err == nil {
				dir = filepath.Join(home, ".config", "bwsync")
			}

			path, err := conf.WriteDefaultConfig(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", path)
			return nil
		},
	}
}
