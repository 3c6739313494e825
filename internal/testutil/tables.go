package testutil

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/hamba/avro/v2/ocf"
	jsoniter "github.com/json-iterator/go"
)

// Manifest entry status and content tags as written by Iceberg.
const (
	StatusExisting = 0
	StatusAdded    = 1
	StatusDeleted  = 2

	ContentData    = 0
	ContentDeletes = 1
)

const manifestListSchema = `{
  "type": "record",
  "name": "manifest_file",
  "fields": [
    {"name": "manifest_path", "type": "string"},
    {"name": "manifest_length", "type": "long"},
    {"name": "partition_spec_id", "type": "int"},
    {"name": "content", "type": "int"},
    {"name": "sequence_number", "type": "long"},
    {"name": "min_sequence_number", "type": "long"},
    {"name": "added_snapshot_id", "type": "long"}
  ]
}`

const manifestEntrySchema = `{
  "type": "record",
  "name": "manifest_entry",
  "fields": [
    {"name": "status", "type": "int"},
    {"name": "snapshot_id", "type": ["null", "long"], "default": null},
    {"name": "sequence_number", "type": ["null", "long"], "default": null},
    {"name": "data_file", "type": {
      "type": "record",
      "name": "r2",
      "fields": [
        {"name": "content", "type": "int"},
        {"name": "file_path", "type": "string"},
        {"name": "file_format", "type": "string"},
        {"name": "record_count", "type": "long"},
        {"name": "file_size_in_bytes", "type": "long"}
      ]
    }}
  ]
}`

var fixtureJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// manifestFileRecord and manifestEntryRecord carry the same field names in
// both encodings. Nil pointers are written as the null union branch.
type manifestFileRecord struct {
	ManifestPath      string `avro:"manifest_path" json:"manifest_path"`
	ManifestLength    int64  `avro:"manifest_length" json:"manifest_length"`
	PartitionSpecID   int    `avro:"partition_spec_id" json:"partition_spec_id"`
	Content           int    `avro:"content" json:"content"`
	SequenceNumber    int64  `avro:"sequence_number" json:"sequence_number"`
	MinSequenceNumber int64  `avro:"min_sequence_number" json:"min_sequence_number"`
	AddedSnapshotID   int64  `avro:"added_snapshot_id" json:"added_snapshot_id"`
}

type manifestEntryRecord struct {
	Status         int            `avro:"status" json:"status"`
	SnapshotID     *int64         `avro:"snapshot_id" json:"snapshot_id"`
	SequenceNumber *int64         `avro:"sequence_number" json:"sequence_number"`
	DataFile       dataFileRecord `avro:"data_file" json:"data_file"`
}

type dataFileRecord struct {
	Content       int    `avro:"content" json:"content"`
	FilePath      string `avro:"file_path" json:"file_path"`
	FileFormat    string `avro:"file_format" json:"file_format"`
	RecordCount   int64  `avro:"record_count" json:"record_count"`
	FileSizeBytes int64  `avro:"file_size_in_bytes" json:"file_size_in_bytes"`
}

// EntryFixture is one manifest entry. Path is relative to the table root.
type EntryFixture struct {
	Status  int
	Content int
	Path    string
	Records int64
	Size    int64
	// Inherited writes null snapshot_id and sequence_number, leaving them to
	// be inherited from the manifest as v2 writers do for added files.
	Inherited bool
}

// ManifestFixture is one manifest of a snapshot.
type ManifestFixture struct {
	Content int
	Entries []EntryFixture
}

// SnapshotFixture is one snapshot with its manifests.
type SnapshotFixture struct {
	ID          uint64
	Seq         uint64
	TimestampMS uint64
	Operation   string
	Manifests   []ManifestFixture
}

// TableFixture describes a table to materialize in a Store.
type TableFixture struct {
	Root string
	// FormatVersion defaults to 2. Version 1 documents omit sequence numbers
	// and per-snapshot schema ids.
	FormatVersion int
	Snapshots     []SnapshotFixture
	// Avro writes manifest lists and manifests as Avro container files
	// instead of JSON arrays.
	Avro bool
	// Deflate compresses Avro container blocks.
	Deflate bool
	// Hint writes metadata/version-hint.text.
	Hint bool
	// RelativePaths records table-relative references instead of absolute
	// locations.
	RelativePaths bool
}

// Write stores the metadata document, manifest lists and manifests of f.
// Data files themselves are not written.
func (f TableFixture) Write(tb testing.TB, s Store) {
	tb.Helper()
	for _, snap := range f.Snapshots {
		var manifests []manifestFileRecord
		for i, m := range snap.Manifests {
			rel := fmt.Sprintf("metadata/m-%d-%d.%s", snap.ID, i, f.ext())
			var entries []manifestEntryRecord
			for _, e := range m.Entries {
				rec := manifestEntryRecord{
					Status: e.Status,
					DataFile: dataFileRecord{
						Content:       e.Content,
						FilePath:      f.ref(e.Path),
						FileFormat:    "PARQUET",
						RecordCount:   e.Records,
						FileSizeBytes: e.Size,
					},
				}
				if !e.Inherited {
					id, seq := int64(snap.ID), int64(snap.Seq)
					rec.SnapshotID, rec.SequenceNumber = &id, &seq
				}
				entries = append(entries, rec)
			}
			s.Put(f.location(rel), encodeRecords(tb, f, manifestEntrySchema, entries))
			manifests = append(manifests, manifestFileRecord{
				ManifestPath:      f.ref(rel),
				ManifestLength:    1024,
				Content:           m.Content,
				SequenceNumber:    int64(snap.Seq),
				MinSequenceNumber: int64(snap.Seq),
				AddedSnapshotID:   int64(snap.ID),
			})
		}
		s.Put(f.location(f.manifestListRel(snap)), encodeRecords(tb, f, manifestListSchema, manifests))
	}

	s.Put(f.location("metadata/v1.metadata.json"), f.MetadataJSON(tb))
	if f.Hint {
		s.Put(f.location("metadata/version-hint.text"), []byte("1\n"))
	}
}

// MetadataJSON renders the table metadata document of f.
func (f TableFixture) MetadataJSON(tb testing.TB) []byte {
	tb.Helper()
	version := f.FormatVersion
	if version == 0 {
		version = 2
	}
	snaps := make([]map[string]any, 0, len(f.Snapshots))
	var current any = -1
	for _, snap := range f.Snapshots {
		obj := map[string]any{
			"snapshot-id":   snap.ID,
			"timestamp-ms":  snap.TimestampMS,
			"manifest-list": f.ref(f.manifestListRel(snap)),
		}
		if version > 1 {
			obj["sequence-number"] = snap.Seq
			obj["schema-id"] = 0
		}
		if snap.Operation != "" {
			obj["summary"] = map[string]string{"operation": snap.Operation}
		}
		snaps = append(snaps, obj)
		current = snap.ID
	}
	doc := map[string]any{
		"format-version":      version,
		"table-uuid":          "9c12d441-03fe-4693-9a96-a0705ddf69c1",
		"location":            f.Root,
		"last-updated-ms":     1700000000000,
		"current-schema-id":   0,
		"current-snapshot-id": current,
		"snapshots":           snaps,
	}
	data, err := fixtureJSON.Marshal(doc)
	if err != nil {
		tb.Fatal(err)
	}
	return data
}

func (f TableFixture) manifestListRel(snap SnapshotFixture) string {
	return fmt.Sprintf("metadata/snap-%d.%s", snap.ID, f.ext())
}

func (f TableFixture) ext() string {
	if f.Avro {
		return "avro"
	}
	return "json"
}

func (f TableFixture) location(rel string) string {
	return strings.TrimRight(f.Root, "/") + "/" + rel
}

func (f TableFixture) ref(rel string) string {
	if f.RelativePaths {
		return rel
	}
	return f.location(rel)
}

func encodeRecords[T any](tb testing.TB, f TableFixture, schema string, records []T) []byte {
	tb.Helper()
	if !f.Avro {
		if records == nil {
			records = []T{}
		}
		data, err := fixtureJSON.Marshal(records)
		if err != nil {
			tb.Fatal(err)
		}
		return data
	}
	var opts []ocf.EncoderFunc
	if f.Deflate {
		opts = append(opts, ocf.WithCodec(ocf.Deflate))
	}
	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(schema, &buf, opts...)
	if err != nil {
		tb.Fatal(err)
	}
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			tb.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		tb.Fatal(err)
	}
	return buf.Bytes()
}
