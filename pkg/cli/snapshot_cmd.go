package cli

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"icescan/internal/iceberg"
)

func newSnapshotCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <table>",
		Short: "Show the selected snapshot of a table",
		Long:  "Show the latest snapshot of a table, or the one chosen with --id or --as-of.",
		Example: `  icescan snapshot ./warehouse/db/events
  icescan snapshot s3://bucket/db/events --as-of 2024-01-01T00:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selectorFromFlags(cmd)
			if err != nil {
				return err
			}
			snap, err := rt.scan.Snapshot(cmd.Context(), args[0], sel)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, snap)
			}
			return printSnapshots([]*iceberg.Snapshot{snap})
		},
	}
	addSelectorFlags(cmd)
	return cmd
}

func newSnapshotsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots <table>",
		Short: "List every snapshot of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := rt.scan.Snapshots(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, snaps)
			}
			return printSnapshots(snaps)
		},
	}
}

func printSnapshots(snaps []*iceberg.Snapshot) error {
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, []string{
			strconv.FormatUint(s.SnapshotID, 10),
			strconv.FormatUint(s.SequenceNumber, 10),
			s.Timestamp().Format(time.RFC3339),
			s.Operation(),
			s.ManifestList,
		})
	}
	return printTable(os.Stdout, []string{"snapshot_id", "sequence", "timestamp", "operation", "manifest_list"}, rows)
}
