package cli

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"icescan/internal/iceberg"
)

func newFilesCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files <table>",
		Short: "List the live files of a snapshot",
		Long: `List the files that are live at the selected snapshot.

By default data files are listed; use --content deletes for delete files.`,
		Example: `  icescan files ./warehouse/db/events
  icescan files ./warehouse/db/events --content deletes --id 3051729675574597004`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selectorFromFlags(cmd)
			if err != nil {
				return err
			}
			v, _ := cmd.Flags().GetString("content")
			ct, err := iceberg.ParseManifestContentType(v)
			if err != nil {
				return err
			}
			res, err := rt.scan.Files(cmd.Context(), args[0], sel, ct)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, res)
			}
			rows := make([][]string, 0, len(res.Files))
			for _, f := range res.Files {
				rows = append(rows, []string{f})
			}
			return printTable(os.Stdout, []string{"path"}, rows)
		},
	}
	addSelectorFlags(cmd)
	cmd.Flags().String("content", "data", "File content to list (data, deletes)")
	return cmd
}

func newManifestsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifests <table>",
		Short: "List the manifests of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := selectorFromFlags(cmd)
			if err != nil {
				return err
			}
			res, err := rt.scan.Manifests(cmd.Context(), args[0], sel)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, res)
			}
			rows := make([][]string, 0, len(res.Manifests))
			for _, m := range res.Manifests {
				rows = append(rows, []string{
					m.Content.String(),
					strconv.FormatUint(m.SequenceNumber, 10),
					strconv.Itoa(m.LiveEntries),
					strconv.Itoa(m.DeletedEntries),
					m.Path,
				})
			}
			return printTable(os.Stdout, []string{"content", "sequence", "live", "deleted", "path"}, rows)
		},
	}
	addSelectorFlags(cmd)
	return cmd
}
