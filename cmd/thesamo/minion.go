package main

import (
	"log/slog"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/daemon"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newMinionCmd())
}

func newMinionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minion",
		Short: "Receive blocks from a master and splice them into the local files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := setupLogging(cmd, cfg); err != nil {
				return err
			}

			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cfg.Network.BindPort = port
			}
			if dir, _ := cmd.Flags().GetString("state-dir"); dir != "" {
				cfg.StateDir = dir
			}

			cmd.SilenceUsage = true
			showHeader(cmd.OutOrStdout(), config.RoleMinion, cfg)
			defer slog.Info("bye")
			return daemon.RunMinion(cmd.Context(), cfg)
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().Int("port", 0, "listen port, overrides the configuration")
	cmd.Flags().String("state-dir", "", "state directory for the lock and the journal")
	return cmd
}
