package cli

import (
	"bytes"
	"os"
	"testing"

	"icescan/internal/testutil"
)

// captureStdout redirects os.Stdout to a pipe and returns a function
// that restores stdout and returns the captured output.
// Uses a goroutine to read concurrently, avoiding pipe buffer deadlocks.
func captureStdout(t *testing.T) func() string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	return func() string {
		_ = w.Close()
		<-done
		os.Stdout = old
		return buf.String()
	}
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ICESCAN_LOG_LEVEL", "error")
	cmd := newRootCmd()
	cmd.SetArgs(args)
	restore := captureStdout(t)
	err := cmd.Execute()
	return restore(), err
}

// writeTable materializes a two-snapshot table on disk and returns its root.
func writeTable(t *testing.T) string {
	t.Helper()
	root := t.TempDir() + "/db/events"
	testutil.TableFixture{
		Root: root,
		Hint: true,
		Snapshots: []testutil.SnapshotFixture{
			{ID: 11, Seq: 1, TimestampMS: 1000, Operation: "append", Manifests: []testutil.ManifestFixture{
				{Entries: []testutil.EntryFixture{
					{Status: testutil.StatusAdded, Path: "data/a.parquet", Records: 1, Size: 10},
				}},
			}},
			{ID: 22, Seq: 2, TimestampMS: 2000, Operation: "overwrite", Manifests: []testutil.ManifestFixture{
				{Entries: []testutil.EntryFixture{
					{Status: testutil.StatusDeleted, Path: "data/a.parquet", Records: 1, Size: 10},
					{Status: testutil.StatusAdded, Path: "data/b.parquet", Records: 2, Size: 20},
				}},
				{Content: testutil.ContentDeletes, Entries: []testutil.EntryFixture{
					{Status: testutil.StatusAdded, Content: 1, Path: "data/del.parquet", Records: 1, Size: 5},
				}},
			}},
		},
	}.Write(t, testutil.NewDirStore(t))
	return root
}
