package iceberg

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"icescan/internal/domain"
)

// TableEntry pairs a manifest with its entries.
type TableEntry struct {
	Manifest Manifest        `json:"manifest"`
	Entries  []ManifestEntry `json:"entries"`
}

// Table is the materialized file set of a table at one snapshot. It is
// read-only once returned by Load.
type Table struct {
	Path     string       `json:"path"`
	Snapshot *Snapshot    `json:"snapshot"`
	Entries  []TableEntry `json:"entries"`
}

// GetPaths returns the live file paths tracked by manifests of content type
// ct, in manifest order then entry order. Duplicates are kept.
func (t *Table) GetPaths(ct ManifestContentType) []string {
	paths := []string{}
	for _, te := range t.Entries {
		if te.Manifest.Content != ct {
			continue
		}
		for _, e := range te.Entries {
			if !e.Status.IsLive() {
				continue
			}
			paths = append(paths, e.FilePath)
		}
	}
	return paths
}

// ContentStats summarizes the manifests of one content type.
type ContentStats struct {
	Content        ManifestContentType `json:"content"`
	Manifests      int                 `json:"manifests"`
	LiveEntries    int                 `json:"live_entries"`
	DeletedEntries int                 `json:"deleted_entries"`
	LiveRecords    uint64              `json:"live_records"`
	LiveBytes      uint64              `json:"live_bytes"`
}

// Stats returns one summary per content type, data first.
func (t *Table) Stats() []ContentStats {
	stats := []ContentStats{
		{Content: ManifestContentData},
		{Content: ManifestContentDeletes},
	}
	for _, te := range t.Entries {
		s := &stats[te.Manifest.Content]
		s.Manifests++
		for _, e := range te.Entries {
			if !e.Status.IsLive() {
				s.DeletedEntries++
				continue
			}
			s.LiveEntries++
			s.LiveRecords += e.RecordCount
			s.LiveBytes += e.FileSizeBytes
		}
	}
	return stats
}

// AssemblerOptions configures a TableAssembler.
type AssemblerOptions struct {
	Logger *slog.Logger
	// Concurrency bounds how many manifests are read at once. Values below 2
	// read manifests one after another.
	Concurrency int
}

// TableAssembler loads the full file set of a snapshot.
type TableAssembler struct {
	io          domain.FileIO
	logger      *slog.Logger
	concurrency int
}

// NewTableAssembler creates an assembler reading through fio.
func NewTableAssembler(fio domain.FileIO, opts AssemblerOptions) *TableAssembler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TableAssembler{io: fio, logger: logger, concurrency: opts.Concurrency}
}

// Load reads the manifest list of snapshot and every manifest in it. It
// returns a complete Table or an error, never a partial result, and reads
// everything from storage on each call.
func (a *TableAssembler) Load(ctx context.Context, root string, snapshot *Snapshot, allowMovedPaths bool) (*Table, error) {
	if snapshot == nil {
		return nil, domain.ErrSnapshotNotFound("no snapshot given for table %q", root)
	}
	root = TableRoot(root)
	paths := PathResolver{AllowMovedPaths: allowMovedPaths}

	manifests, err := NewManifestListReader(a.io, paths).ReadManifestList(ctx, root, snapshot.ManifestList)
	if err != nil {
		return nil, err
	}

	entries := make([]TableEntry, len(manifests))
	reader := NewManifestEntryReader(a.io, paths)
	readAt := func(ctx context.Context, i int) error {
		me, err := reader.ReadEntries(ctx, root, manifests[i])
		if err != nil {
			return err
		}
		entries[i] = TableEntry{Manifest: manifests[i], Entries: me}
		return nil
	}

	if a.concurrency < 2 {
		for i := range manifests {
			if err := readAt(ctx, i); err != nil {
				return nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.concurrency)
		for i := range manifests {
			g.Go(func() error { return readAt(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("loaded table", "table", root, "snapshot_id", snapshot.SnapshotID,
		"manifests", len(manifests))
	return &Table{Path: root, Snapshot: snapshot, Entries: entries}, nil
}
