package iceberg

import (
	"context"
	"fmt"
	"strings"

	"icescan/internal/domain"
)

// ManifestContentType classifies a manifest as tracking data or delete files.
type ManifestContentType uint8

// Manifest content types, numbered as in the manifest list "content" field.
const (
	ManifestContentData    ManifestContentType = 0
	ManifestContentDeletes ManifestContentType = 1
)

func (c ManifestContentType) String() string {
	switch c {
	case ManifestContentData:
		return "data"
	case ManifestContentDeletes:
		return "deletes"
	default:
		return fmt.Sprintf("ManifestContentType(%d)", uint8(c))
	}
}

// MarshalText renders the content type by name.
func (c ManifestContentType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseManifestContentType parses "data" or "deletes".
func ParseManifestContentType(s string) (ManifestContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "data":
		return ManifestContentData, nil
	case "deletes", "delete":
		return ManifestContentDeletes, nil
	default:
		return 0, fmt.Errorf("unknown content type %q: use 'data' or 'deletes'", s)
	}
}

func manifestContentFromTag(tag uint64) (ManifestContentType, error) {
	switch tag {
	case uint64(ManifestContentData):
		return ManifestContentData, nil
	case uint64(ManifestContentDeletes):
		return ManifestContentDeletes, nil
	default:
		return 0, domain.ErrSchema("unrecognized manifest content type %d", tag)
	}
}

// Manifest describes one manifest file listed in a snapshot's manifest list.
// Path is the reference as recorded; it is resolved when entries are read.
type Manifest struct {
	Path              string              `json:"path"`
	Length            uint64              `json:"length"`
	PartitionSpecID   uint64              `json:"partition_spec_id"`
	Content           ManifestContentType `json:"content"`
	SequenceNumber    uint64              `json:"sequence_number"`
	MinSequenceNumber uint64              `json:"min_sequence_number"`
	AddedSnapshotID   uint64              `json:"added_snapshot_id"`
}

// ParseManifest reads one manifest list record. Only the path and content
// type are required; v1 manifest lists carry no content field and list data
// manifests only.
func ParseManifest(rec map[string]any) (Manifest, error) {
	var (
		m   Manifest
		err error
	)
	if m.Path, err = GetString(rec, "manifest_path"); err != nil {
		return Manifest{}, err
	}
	if tag, ok, err := LookupUint(rec, "content"); err != nil {
		return Manifest{}, err
	} else if ok {
		if m.Content, err = manifestContentFromTag(tag); err != nil {
			return Manifest{}, err
		}
	}

	optional := []struct {
		field string
		dst   *uint64
	}{
		{"manifest_length", &m.Length},
		{"partition_spec_id", &m.PartitionSpecID},
		{"sequence_number", &m.SequenceNumber},
		{"min_sequence_number", &m.MinSequenceNumber},
		{"added_snapshot_id", &m.AddedSnapshotID},
	}
	for _, f := range optional {
		v, ok, err := LookupUint(rec, f.field)
		if err != nil {
			return Manifest{}, err
		}
		if ok {
			*f.dst = v
		}
	}
	return m, nil
}

// ManifestListReader reads the manifest list of a snapshot.
type ManifestListReader struct {
	io    domain.FileIO
	paths PathResolver
}

// NewManifestListReader creates a reader resolving references with paths.
func NewManifestListReader(fio domain.FileIO, paths PathResolver) *ManifestListReader {
	return &ManifestListReader{io: fio, paths: paths}
}

// ReadManifestList returns the manifests listed in ref, in list order.
func (r *ManifestListReader) ReadManifestList(ctx context.Context, root, ref string) ([]Manifest, error) {
	location, err := r.paths.Resolve(root, ref)
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

	manifests := make([]Manifest, 0, len(records))
	for i, rec := range records {
		m, err := ParseManifest(rec)
		if err != nil {
			return nil, fmt.Errorf("manifest list %q entry %d: %w", location, i, err)
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}
