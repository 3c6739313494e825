package iceberg

import (
	"bytes"

	"github.com/hamba/avro/v2/ocf"

	"icescan/internal/domain"
)

// avroMagic starts every Avro object container file.
var avroMagic = []byte{'O', 'b', 'j', 1}

// decodeRecords decodes a manifest list or manifest into generic records.
// Iceberg writes these as Avro object container files; a JSON array of
// records with the same field names is accepted as well.
func decodeRecords(location string, data []byte) ([]map[string]any, error) {
	if bytes.HasPrefix(data, avroMagic) {
		return decodeAvroRecords(location, data)
	}
	var records []map[string]any
	if err := metadataJSON.Unmarshal(data, &records); err != nil {
		return nil, domain.ErrSchema("decode %q: %v", location, err)
	}
	return records, nil
}

func decodeAvroRecords(location string, data []byte) ([]map[string]any, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrSchema("open avro container %q: %v", location, err)
	}
	var records []map[string]any
	for dec.HasNext() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, domain.ErrSchema("decode avro record %d of %q: %v", len(records), location, err)
		}
		records = append(records, rec)
	}
	if err := dec.Error(); err != nil {
		return nil, domain.ErrSchema("read avro container %q: %v", location, err)
	}
	return records, nil
}
