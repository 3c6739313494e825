package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"icescan/internal/config"
	"icescan/internal/iceberg"
)

// readerFlags are the persistent flags that override config values. Only
// flags set on the command line are applied.
type readerFlags struct {
	logLevel        string
	logFormat       string
	allowMovedPaths bool
	concurrency     int
}

func (f *readerFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
	fs.BoolVar(&f.allowMovedPaths, "allow-moved-paths", false, "Rebase recorded paths onto the table root")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Manifests read in parallel")
}

func (f *readerFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if fs.Changed("allow-moved-paths") {
		cfg.AllowMovedPaths = f.allowMovedPaths
	}
	if fs.Changed("concurrency") && f.concurrency > 0 {
		cfg.Concurrency = f.concurrency
	}
}

// addSelectorFlags registers --id and --as-of on a command.
func addSelectorFlags(cmd *cobra.Command) {
	cmd.Flags().String("id", "", "Snapshot ID to read")
	cmd.Flags().String("as-of", "", "Read the snapshot current at this time (epoch ms or RFC 3339)")
	cmd.MarkFlagsMutuallyExclusive("id", "as-of")
}

// selectorFromFlags builds a snapshot selector from --id and --as-of.
func selectorFromFlags(cmd *cobra.Command) (iceberg.Selector, error) {
	var sel iceberg.Selector
	if v, _ := cmd.Flags().GetString("id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return sel, fmt.Errorf("invalid --id %q: must be an unsigned integer", v)
		}
		sel.SnapshotID = &id
	}
	if v, _ := cmd.Flags().GetString("as-of"); v != "" {
		ts, err := iceberg.ParseTimestamp(v)
		if err != nil {
			return sel, fmt.Errorf("invalid --as-of: %w", err)
		}
		sel.AsOf = &ts
	}
	return sel, nil
}
