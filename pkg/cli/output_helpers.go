package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"icescan/internal/domain"
)

var outputJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// defaultOutputFormat picks table output for terminals and JSON when piped.
func defaultOutputFormat(w io.Writer) string {
	f, ok := w.(*os.File)
	if ok && term.IsTerminal(int(f.Fd())) {
		return "table"
	}
	return "json"
}

func printJSON(w io.Writer, v interface{}) error {
	enc := outputJSON.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes rows as tab-aligned columns under an upper-cased header.
func printTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	upper := make([]string, len(headers))
	for i, h := range headers {
		upper[i] = strings.ToUpper(h)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(upper, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// errorKind names the domain error class for JSON error output.
func errorKind(err error) string {
	var notFound *domain.NotFoundError
	var snapNotFound *domain.SnapshotNotFoundError
	var schema *domain.SchemaError
	var pathErr *domain.PathError
	var ioErr *domain.IOError

	switch {
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &snapNotFound):
		return "snapshot_not_found"
	case errors.As(err, &schema):
		return "schema"
	case errors.As(err, &pathErr):
		return "path"
	case errors.As(err, &ioErr):
		return "io"
	default:
		return "error"
	}
}
