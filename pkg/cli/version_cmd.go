package cli

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"icescan/internal/iceberg"
)

// buildInfo describes the binary and the table layouts it can read.
type buildInfo struct {
	Version           string   `json:"version"`
	Commit            string   `json:"commit"`
	GoVersion         string   `json:"go_version,omitempty"`
	FormatVersions    []int    `json:"format_versions"`
	ManifestEncodings []string `json:"manifest_encodings"`
}

// currentBuildInfo prefers values set at link time and falls back to the
// module and VCS stamps recorded by the Go toolchain.
func currentBuildInfo() buildInfo {
	info := buildInfo{
		Version:           version,
		Commit:            commit,
		ManifestEncodings: iceberg.ManifestEncodings,
	}
	for v := iceberg.MinFormatVersion; v <= iceberg.MaxFormatVersion; v++ {
		info.FormatVersions = append(info.FormatVersions, v)
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	if info.Commit == "none" {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				info.Commit = s.Value
			}
		}
	}
	return info
}

func (b buildInfo) writeText(w io.Writer) {
	formats := make([]string, len(b.FormatVersions))
	for i, v := range b.FormatVersions {
		formats[i] = fmt.Sprintf("v%d", v)
	}
	_, _ = fmt.Fprintf(w, "icescan %s (commit: %s)\n", b.Version, b.Commit)
	if b.GoVersion != "" {
		_, _ = fmt.Fprintf(w, "  built with:         %s\n", b.GoVersion)
	}
	_, _ = fmt.Fprintf(w, "  table formats:      %s\n", strings.Join(formats, ", "))
	_, _ = fmt.Fprintf(w, "  manifest encodings: %s\n", strings.Join(b.ManifestEncodings, ", "))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information and supported table formats",
		Args:  cobra.NoArgs,
		// Needs neither configuration nor storage.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := currentBuildInfo()
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, info)
			}
			info.writeText(os.Stdout)
			return nil
		},
	}
}
