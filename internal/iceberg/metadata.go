package iceberg

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"icescan/internal/domain"
)

// Table format versions this package reads.
const (
	MinFormatVersion = 1
	MaxFormatVersion = 3
)

// ManifestEncodings lists the container formats accepted for manifest lists
// and manifests.
var ManifestEncodings = []string{"avro", "json"}

// metadataJSON keeps numbers as json.Number so 64-bit snapshot ids survive
// decoding without float rounding.
var metadataJSON = jsoniter.Config{UseNumber: true}.Froze()

// TableMetadata is the parsed header of a table metadata document together
// with its raw snapshot list. Snapshots are parsed lazily so that selecting
// one snapshot only requires that snapshot to be well-formed.
type TableMetadata struct {
	FormatVersion     uint64
	TableUUID         uuid.UUID
	Location          string
	LastUpdatedMS     uint64
	CurrentSnapshotID *uint64
	CurrentSchemaID   *uint64

	snapshots []any
}

// ParseTableMetadata decodes a metadata document.
func ParseTableMetadata(data []byte) (*TableMetadata, error) {
	var doc map[string]any
	if err := metadataJSON.Unmarshal(data, &doc); err != nil {
		return nil, domain.ErrSchema("decode table metadata: %v", err)
	}
	if doc == nil {
		return nil, domain.ErrSchema("table metadata is not a JSON object")
	}

	formatVersion, err := GetUint(doc, "format-version")
	if err != nil {
		return nil, err
	}
	if formatVersion < MinFormatVersion || formatVersion > MaxFormatVersion {
		return nil, domain.ErrSchema("unsupported format-version %d", formatVersion)
	}
	meta := &TableMetadata{FormatVersion: formatVersion}

	if _, ok := doc["table-uuid"]; ok {
		raw, err := GetString(doc, "table-uuid")
		if err != nil {
			return nil, err
		}
		if meta.TableUUID, err = uuid.Parse(raw); err != nil {
			return nil, domain.ErrSchema("field %q: %v", "table-uuid", err)
		}
	}
	if _, ok := doc["location"]; ok {
		if meta.Location, err = GetString(doc, "location"); err != nil {
			return nil, err
		}
	}
	if v, ok, err := LookupUint(doc, "last-updated-ms"); err != nil {
		return nil, err
	} else if ok {
		meta.LastUpdatedMS = v
	}
	if meta.CurrentSnapshotID, err = lookupSnapshotRef(doc, "current-snapshot-id"); err != nil {
		return nil, err
	}
	if v, ok, err := LookupUint(doc, "current-schema-id"); err != nil {
		return nil, err
	} else if ok {
		meta.CurrentSchemaID = &v
	}
	if meta.snapshots, err = GetArray(doc, "snapshots"); err != nil {
		return nil, err
	}
	return meta, nil
}

// lookupSnapshotRef reads an optional snapshot id where -1 means "none", as
// written by older Iceberg writers.
func lookupSnapshotRef(doc map[string]any, field string) (*uint64, error) {
	if n, ok := doc[field].(json.Number); ok && n.String() == "-1" {
		return nil, nil
	}
	v, ok, err := LookupUint(doc, field)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// SnapshotCount returns the number of entries in the snapshots array.
func (m *TableMetadata) SnapshotCount() int { return len(m.snapshots) }

// Snapshots parses every snapshot in document order.
func (m *TableMetadata) Snapshots() ([]*Snapshot, error) {
	out := make([]*Snapshot, 0, len(m.snapshots))
	for i := range m.snapshots {
		s, err := m.parseAt(i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// LatestSnapshot returns the snapshot with the greatest sequence number. On a
// tie the later array position wins.
func (m *TableMetadata) LatestSnapshot() (*Snapshot, error) {
	best := -1
	var bestSeq uint64
	for i := range m.snapshots {
		obj, err := m.objectAt(i)
		if err != nil {
			return nil, err
		}
		seq, err := m.sequenceNumber(obj)
		if err != nil {
			return nil, err
		}
		if best < 0 || seq >= bestSeq {
			best, bestSeq = i, seq
		}
	}
	if best < 0 {
		return nil, domain.ErrSnapshotNotFound("table has no snapshots")
	}
	return m.parseAt(best)
}

// SnapshotByID returns the snapshot whose id is id.
func (m *TableMetadata) SnapshotByID(id uint64) (*Snapshot, error) {
	for i := range m.snapshots {
		obj, err := m.objectAt(i)
		if err != nil {
			return nil, err
		}
		sid, err := GetUint(obj, "snapshot-id")
		if err != nil {
			return nil, err
		}
		if sid == id {
			return m.parseAt(i)
		}
	}
	return nil, domain.ErrSnapshotNotFound("snapshot %d not found", id)
}

// SnapshotAsOf returns the snapshot with the greatest timestamp not after ts.
// Snapshots sharing that timestamp are ordered by sequence number, then by
// array position.
func (m *TableMetadata) SnapshotAsOf(ts time.Time) (*Snapshot, error) {
	target := ts.UnixMilli()
	best := -1
	var bestTS, bestSeq uint64
	if target >= 0 {
		for i := range m.snapshots {
			obj, err := m.objectAt(i)
			if err != nil {
				return nil, err
			}
			sts, err := GetUint(obj, "timestamp-ms")
			if err != nil {
				return nil, err
			}
			if sts > uint64(target) {
				continue
			}
			seq, err := m.sequenceNumber(obj)
			if err != nil {
				return nil, err
			}
			if best < 0 || sts > bestTS || (sts == bestTS && seq >= bestSeq) {
				best, bestTS, bestSeq = i, sts, seq
			}
		}
	}
	if best < 0 {
		return nil, domain.ErrSnapshotNotFound("no snapshot at or before %s", ts.UTC().Format(time.RFC3339Nano))
	}
	return m.parseAt(best)
}

func (m *TableMetadata) objectAt(i int) (map[string]any, error) {
	obj, ok := m.snapshots[i].(map[string]any)
	if !ok {
		return nil, domain.ErrSchema("snapshots[%d]: expected object, got %T", i, m.snapshots[i])
	}
	return obj, nil
}

func (m *TableMetadata) parseAt(i int) (*Snapshot, error) {
	obj, err := m.objectAt(i)
	if err != nil {
		return nil, err
	}
	return m.parseSnapshot(obj)
}

// sequenceNumber applies the v1 rule that snapshots without a sequence
// number carry sequence number 0.
func (m *TableMetadata) sequenceNumber(obj map[string]any) (uint64, error) {
	if m.FormatVersion == 1 {
		v, _, err := LookupUint(obj, "sequence-number")
		return v, err
	}
	return GetUint(obj, "sequence-number")
}
