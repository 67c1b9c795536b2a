package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/daemon"
	"github.com/VersBinarii/thesamo/internal/master"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newMasterCmd())
}

func newMasterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master",
		Short: "Poll the watched files and push changed blocks to the minion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := setupLogging(cmd, cfg); err != nil {
				return err
			}

			var opts []master.Option
			if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
				opts = append(opts, master.WithInterval(interval))
			}
			if cmd.Flags().Changed("watch") {
				cfg.Watch, _ = cmd.Flags().GetBool("watch")
			}

			cmd.SilenceUsage = true

			if once, _ := cmd.Flags().GetBool("once"); once {
				return pollOnce(cmd, cfg, opts)
			}

			showHeader(cmd.OutOrStdout(), config.RoleMaster, cfg)
			defer slog.Info("bye")
			return daemon.RunMaster(cmd.Context(), cfg, opts...)
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().Duration("interval", 0, "poll interval, overrides the configuration")
	cmd.Flags().Bool("watch", false, "poll early when a watched file is written")
	cmd.Flags().Bool("once", false, "sync every file once and exit")
	return cmd
}

// pollOnce pushes every file a single time. It fails when any file could not
// be sent.
func pollOnce(cmd *cobra.Command, cfg *config.Config, opts []master.Option) error {
	controller, err := master.New(cfg, opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	res := controller.Poll(cmd.Context())
	slog.Info("sync once", "dispatched", res.Dispatched, "failed", res.Failed, "took", time.Since(start))

	if res.Failed > 0 {
		return fmt.Errorf("%d of %d files failed to sync", res.Failed, res.Failed+res.Dispatched+res.Unchanged)
	}
	return nil
}
