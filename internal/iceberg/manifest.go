package iceberg

import (
	"context"
	"fmt"

	"icescan/internal/domain"
)

// ManifestEntryStatus is the lifecycle flag of a manifest entry.
type ManifestEntryStatus uint8

// Entry statuses, numbered as in the manifest "status" field.
const (
	EntryExisting ManifestEntryStatus = 0
	EntryAdded    ManifestEntryStatus = 1
	EntryDeleted  ManifestEntryStatus = 2
)

func (s ManifestEntryStatus) String() string {
	switch s {
	case EntryExisting:
		return "existing"
	case EntryAdded:
		return "added"
	case EntryDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("ManifestEntryStatus(%d)", uint8(s))
	}
}

// MarshalText renders the status by name.
func (s ManifestEntryStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsLive reports whether the entry names a file that belongs to the table.
// Deleted entries are tombstones.
func (s ManifestEntryStatus) IsLive() bool {
	switch s {
	case EntryExisting, EntryAdded:
		return true
	case EntryDeleted:
		return false
	default:
		panic(fmt.Sprintf("iceberg: unhandled manifest entry status %d", uint8(s)))
	}
}

func entryStatusFromTag(tag uint64) (ManifestEntryStatus, error) {
	switch tag {
	case uint64(EntryExisting):
		return EntryExisting, nil
	case uint64(EntryAdded):
		return EntryAdded, nil
	case uint64(EntryDeleted):
		return EntryDeleted, nil
	default:
		return 0, domain.ErrSchema("unrecognized manifest entry status %d", tag)
	}
}

// DataFileContent is the kind of file a manifest entry tracks.
type DataFileContent uint8

// File content kinds, numbered as in the data_file "content" field.
const (
	FileContentData            DataFileContent = 0
	FileContentPositionDeletes DataFileContent = 1
	FileContentEqualityDeletes DataFileContent = 2
)

func (c DataFileContent) String() string {
	switch c {
	case FileContentData:
		return "data"
	case FileContentPositionDeletes:
		return "position_deletes"
	case FileContentEqualityDeletes:
		return "equality_deletes"
	default:
		return fmt.Sprintf("DataFileContent(%d)", uint8(c))
	}
}

// MarshalText renders the file content kind by name.
func (c DataFileContent) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func fileContentFromTag(tag uint64) (DataFileContent, error) {
	switch tag {
	case uint64(FileContentData):
		return FileContentData, nil
	case uint64(FileContentPositionDeletes):
		return FileContentPositionDeletes, nil
	case uint64(FileContentEqualityDeletes):
		return FileContentEqualityDeletes, nil
	default:
		return 0, domain.ErrSchema("unrecognized data file content %d", tag)
	}
}

// ManifestEntry is one file-level record of a manifest. FilePath is already
// resolved against the table root.
type ManifestEntry struct {
	Status         ManifestEntryStatus `json:"status"`
	SnapshotID     *uint64             `json:"snapshot_id,omitempty"`
	SequenceNumber *uint64             `json:"sequence_number,omitempty"`
	Content        DataFileContent     `json:"content"`
	FilePath       string              `json:"file_path"`
	FileFormat     string              `json:"file_format"`
	RecordCount    uint64              `json:"record_count"`
	FileSizeBytes  uint64              `json:"file_size_in_bytes"`
}

// ParseManifestEntry reads one manifest record. FilePath is returned as
// recorded.
func ParseManifestEntry(rec map[string]any) (ManifestEntry, error) {
	var e ManifestEntry

	tag, err := GetUint(rec, "status")
	if err != nil {
		return ManifestEntry{}, err
	}
	if e.Status, err = entryStatusFromTag(tag); err != nil {
		return ManifestEntry{}, err
	}
	if v, ok, err := LookupUint(rec, "snapshot_id"); err != nil {
		return ManifestEntry{}, err
	} else if ok {
		e.SnapshotID = &v
	}
	if v, ok, err := LookupUint(rec, "sequence_number"); err != nil {
		return ManifestEntry{}, err
	} else if ok {
		e.SequenceNumber = &v
	}

	file, err := GetObject(rec, "data_file")
	if err != nil {
		return ManifestEntry{}, err
	}
	if tag, ok, err := LookupUint(file, "content"); err != nil {
		return ManifestEntry{}, err
	} else if ok {
		if e.Content, err = fileContentFromTag(tag); err != nil {
			return ManifestEntry{}, err
		}
	}
	if e.FilePath, err = GetString(file, "file_path"); err != nil {
		return ManifestEntry{}, err
	}
	if e.FileFormat, err = GetString(file, "file_format"); err != nil {
		return ManifestEntry{}, err
	}
	if e.RecordCount, err = GetUint(file, "record_count"); err != nil {
		return ManifestEntry{}, err
	}
	if e.FileSizeBytes, err = GetUint(file, "file_size_in_bytes"); err != nil {
		return ManifestEntry{}, err
	}
	return e, nil
}

// ManifestEntryReader reads the entries of one manifest.
type ManifestEntryReader struct {
	io    domain.FileIO
	paths PathResolver
}

// NewManifestEntryReader creates a reader resolving references with paths.
func NewManifestEntryReader(fio domain.FileIO, paths PathResolver) *ManifestEntryReader {
	return &ManifestEntryReader{io: fio, paths: paths}
}

// ReadEntries returns every entry of m in file order, deleted ones included.
func (r *ManifestEntryReader) ReadEntries(ctx context.Context, root string, m Manifest) ([]ManifestEntry, error) {
	location, err := r.paths.Resolve(root, m.Path)
	if err != nil {
		return nil, err
	}
	data, err := r.io.ReadFull(ctx, location)
	if err != nil {
		return nil, domain.ErrIO(location, err)
	}
	records, err := decodeRecords(location, data)
	if err != nil {
		return nil, err
	}

	entries := make([]ManifestEntry, 0, len(records))
	for i, rec := range records {
		e, err := ParseManifestEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("manifest %q entry %d: %w", location, i, err)
		}
		if e.FilePath, err = r.paths.Resolve(root, e.FilePath); err != nil {
			return nil, fmt.Errorf("manifest %q entry %d: %w", location, i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
