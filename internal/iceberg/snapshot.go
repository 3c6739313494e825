package iceberg

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"icescan/internal/domain"
)

// Snapshot is one committed state of a table. Values are never modified
// after parsing.
type Snapshot struct {
	SnapshotID       uint64            `json:"snapshot_id"`
	ParentSnapshotID *uint64           `json:"parent_snapshot_id,omitempty"`
	SequenceNumber   uint64            `json:"sequence_number"`
	SchemaID         uint64            `json:"schema_id"`
	ManifestList     string            `json:"manifest_list"`
	TimestampMS      uint64            `json:"timestamp_ms"`
	Summary          map[string]string `json:"summary,omitempty"`
}

// Timestamp returns the commit time in UTC.
func (s *Snapshot) Timestamp() time.Time {
	return time.UnixMilli(int64(s.TimestampMS)).UTC()
}

// Operation returns the summary's operation (append, overwrite, ...), if any.
func (s *Snapshot) Operation() string {
	return s.Summary["operation"]
}

// ParseSnapshot extracts a snapshot from one element of a metadata
// document's snapshots array. Every core field is required.
func ParseSnapshot(obj map[string]any) (*Snapshot, error) {
	return (&TableMetadata{FormatVersion: 2}).parseSnapshot(obj)
}

func (m *TableMetadata) parseSnapshot(obj map[string]any) (*Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	if s.SnapshotID, err = GetUint(obj, "snapshot-id"); err != nil {
		return nil, err
	}
	if s.SequenceNumber, err = m.sequenceNumber(obj); err != nil {
		return nil, err
	}
	if s.SchemaID, err = m.schemaID(obj); err != nil {
		return nil, err
	}
	if s.ManifestList, err = GetString(obj, "manifest-list"); err != nil {
		return nil, err
	}
	if s.TimestampMS, err = GetUint(obj, "timestamp-ms"); err != nil {
		return nil, err
	}
	if v, ok, err := LookupUint(obj, "parent-snapshot-id"); err != nil {
		return nil, err
	} else if ok {
		s.ParentSnapshotID = &v
	}
	if _, ok := obj["summary"]; ok {
		summary, err := GetObject(obj, "summary")
		if err != nil {
			return nil, err
		}
		s.Summary = make(map[string]string, len(summary))
		for k := range summary {
			str, err := GetString(summary, k)
			if err != nil {
				return nil, domain.ErrSchema("snapshot %d summary: %v", s.SnapshotID, err)
			}
			s.Summary[k] = str
		}
	}
	return &s, nil
}

// schemaID falls back to the table's current schema for v1 snapshots, which
// predate per-snapshot schema ids.
func (m *TableMetadata) schemaID(obj map[string]any) (uint64, error) {
	if m.FormatVersion == 1 && m.CurrentSchemaID != nil {
		v, ok, err := LookupUint(obj, "schema-id")
		if err != nil {
			return 0, err
		}
		if !ok {
			return *m.CurrentSchemaID, nil
		}
		return v, nil
	}
	return GetUint(obj, "schema-id")
}

// SnapshotLocator selects a snapshot from the newest metadata document of a
// table. Each call re-reads the document.
type SnapshotLocator struct {
	io       domain.FileIO
	versions *MetadataVersionResolver
	logger   *slog.Logger
}

// NewSnapshotLocator creates a locator reading through fio.
func NewSnapshotLocator(fio domain.FileIO, logger *slog.Logger) *SnapshotLocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotLocator{
		io:       fio,
		versions: NewMetadataVersionResolver(fio, logger),
		logger:   logger,
	}
}

// Metadata reads and parses the newest metadata document under root.
func (l *SnapshotLocator) Metadata(ctx context.Context, root string) (*TableMetadata, error) {
	file, err := l.versions.Latest(ctx, root)
	if err != nil {
		return nil, err
	}
	data, err := l.io.ReadFull(ctx, file.Path)
	if err != nil {
		return nil, domain.ErrIO(file.Path, err)
	}
	meta, err := ParseTableMetadata(data)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("read table metadata", "table", root, "path", file.Path,
		"format_version", meta.FormatVersion, "snapshots", meta.SnapshotCount())
	return meta, nil
}

// ByLatest returns the snapshot with the greatest sequence number.
func (l *SnapshotLocator) ByLatest(ctx context.Context, root string) (*Snapshot, error) {
	meta, err := l.Metadata(ctx, root)
	if err != nil {
		return nil, err
	}
	return l.selected(root, "latest")(meta.LatestSnapshot())
}

// ByID returns the snapshot with the given id.
func (l *SnapshotLocator) ByID(ctx context.Context, root string, id uint64) (*Snapshot, error) {
	meta, err := l.Metadata(ctx, root)
	if err != nil {
		return nil, err
	}
	return l.selected(root, "id")(meta.SnapshotByID(id))
}

// ByTimestamp returns the newest snapshot committed at or before ts.
func (l *SnapshotLocator) ByTimestamp(ctx context.Context, root string, ts time.Time) (*Snapshot, error) {
	meta, err := l.Metadata(ctx, root)
	if err != nil {
		return nil, err
	}
	return l.selected(root, "timestamp")(meta.SnapshotAsOf(ts))
}

// List returns every snapshot of the table in document order.
func (l *SnapshotLocator) List(ctx context.Context, root string) ([]*Snapshot, error) {
	meta, err := l.Metadata(ctx, root)
	if err != nil {
		return nil, err
	}
	return meta.Snapshots()
}

func (l *SnapshotLocator) selected(root, policy string) func(*Snapshot, error) (*Snapshot, error) {
	return func(s *Snapshot, err error) (*Snapshot, error) {
		if err != nil {
			return nil, err
		}
		l.logger.Debug("selected snapshot", "table", root, "policy", policy,
			"snapshot_id", s.SnapshotID, "sequence_number", s.SequenceNumber)
		return s, nil
	}
}

// Selector chooses a snapshot policy. The zero value selects the latest
// snapshot; SnapshotID and AsOf are mutually exclusive.
type Selector struct {
	SnapshotID *uint64
	AsOf       *time.Time
}

// Select dispatches to ByID, ByTimestamp or ByLatest according to sel.
func (l *SnapshotLocator) Select(ctx context.Context, root string, sel Selector) (*Snapshot, error) {
	switch {
	case sel.SnapshotID != nil && sel.AsOf != nil:
		return nil, fmt.Errorf("snapshot id and as-of timestamp are mutually exclusive")
	case sel.SnapshotID != nil:
		return l.ByID(ctx, root, *sel.SnapshotID)
	case sel.AsOf != nil:
		return l.ByTimestamp(ctx, root, *sel.AsOf)
	default:
		return l.ByLatest(ctx, root)
	}
}

// ParseTimestamp parses an as-of time given either as RFC 3339 or as
// milliseconds since the Unix epoch.
func ParseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: use RFC 3339 or epoch milliseconds", s)
	}
	return t.UTC(), nil
}
