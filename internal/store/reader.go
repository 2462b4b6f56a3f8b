package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

// Reader provides read access to one record's pages and tags. Multiple
// Readers for the same record may share one pooled file handle; I/O
// through that handle is serialized by the handle's own mutex.
type Reader struct {
	store    *Store
	id       uuid.UUID
	pooled   *pooledReader
	metaPath string
}

// ID returns the record id this reader was opened for.
func (r *Reader) ID() uuid.UUID { return r.id }

// Read verifies page pageIndex's CRC and copies its payload into payload.
// It returns errkind.ErrCorrupt if the stored CRC does not match.
func (r *Reader) Read(pageIndex uint32, payload []byte) error {
	raw := make([]byte, PageSize)

	r.pooled.mu.Lock()
	_, err := r.pooled.file.ReadAt(raw, pageOffset(pageIndex))
	r.pooled.mu.Unlock()
	if err != nil {
		return fmt.Errorf("reading page %d: %w", pageIndex, err)
	}

	return decodePage(raw, payload)
}

// ReadMetadata reloads and returns the record's current metadata.
func (r *Reader) ReadMetadata() (*Metadata, error) {
	return readMetadata(r.metaPath)
}

// ReadTag returns a single tag by id.
func (r *Reader) ReadTag(id uuid.UUID) (*Tag, error) {
	meta, err := r.ReadMetadata()
	if err != nil {
		return nil, err
	}
	for i := range meta.Tags {
		if meta.Tags[i].ID == id {
			return &meta.Tags[i], nil
		}
	}
	return nil, fmt.Errorf("%w: tag %s", errkind.ErrNotFound, id)
}

// GetTagIds returns up to count tag ids starting at skip, clamped to the
// record's actual tag count.
func (r *Reader) GetTagIds(skip, count uint32) ([]uuid.UUID, error) {
	meta, err := r.ReadMetadata()
	if err != nil {
		return nil, err
	}

	lo, hi := clampRange(skip, count, uint32(len(meta.Tags)))
	ids := make([]uuid.UUID, 0, hi-lo)
	for _, t := range meta.Tags[lo:hi] {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// ItemCount returns how many pages exist between skip and skip+count,
// clamped to the file's actual length.
func (r *Reader) ItemCount(skip, count uint32) (int, error) {
	r.pooled.mu.Lock()
	info, err := r.pooled.file.Stat()
	r.pooled.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("stat data file: %w", err)
	}

	total := pageCountForSize(info.Size())
	lo, hi := clampRange(skip, count, total)
	return int(hi - lo), nil
}

// clampRange clamps [skip, skip+count) into [0, total], matching the
// boundary requirement that skip >= total yields a zero-length result.
func clampRange(skip, count, total uint32) (lo, hi uint32) {
	if skip >= total {
		return total, total
	}
	lo = skip
	hi = skip + count
	if hi > total {
		hi = total
	}
	return lo, hi
}

// Close releases this reader's reference. The underlying pooled file handle
// is not closed immediately: it is reaped by the store after FileCacheTTL
// of inactivity, amortizing open cost across bursts of reads.
func (r *Reader) Close() error {
	return nil
}
