package store

import (
	"encoding/json"
	"fmt"
	"os"
)

const metadataFileName = "metadata.json"
const dataFileName = "data.bin"

func readMetadata(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	if m.SchemaVersion == 0 {
		m.SchemaVersion = 1 // absent field treated as version 1
	}
	m.syncDerived()
	return &m, nil
}

func writeMetadata(path string, m *Metadata) error {
	m.SchemaVersion = SchemaVersion
	m.syncSerialized()

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing metadata: %w", err)
	}
	return nil
}
