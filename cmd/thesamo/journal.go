package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/VersBinarii/thesamo/internal/minion"
	"github.com/VersBinarii/thesamo/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newJournalCmd())
}

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the packets a minion has applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateDir, _ := cmd.Flags().GetString("state-dir")
			if stateDir == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				stateDir = cfg.StateDir
			}
			if stateDir == "" {
				return fmt.Errorf("no state_dir configured, the minion keeps no journal")
			}

			dir, err := utils.ResolvePath(stateDir)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, minion.JournalFile)
			if !utils.FileExists(path) {
				return fmt.Errorf("no journal at %s", path)
			}

			cmd.SilenceUsage = true

			journal, err := minion.OpenJournal(path)
			if err != nil {
				return err
			}
			defer journal.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := journal.Recent(limit)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			return printJournal(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().String("state-dir", "", "state directory, overrides the configuration")
	cmd.Flags().IntP("limit", "n", 20, "number of entries, 0 for all")
	cmd.Flags().Bool("json", false, "print entries as JSON")
	return cmd
}

func printJournal(w io.Writer, entries []minion.JournalEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "journal is empty")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tFILE\tOUTCOME\tBLOCKS\tFROM\tPACKET")
	for _, e := range entries {
		outcome := string(e.Outcome)
		switch e.Outcome {
		case minion.OutcomeApplied:
			outcome = green(outcome)
		case minion.OutcomeFailed:
			outcome = red(outcome)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			humanize.Time(e.AppliedAt), e.FileID, outcome, e.Blocks, e.Remote, e.PacketID)
		if e.Error != "" {
			fmt.Fprintf(tw, "\t\t%s\t\t\t\n", e.Error)
		}
	}
	return tw.Flush()
}
