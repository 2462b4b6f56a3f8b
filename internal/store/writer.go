package store

import (
	"crypto/md5"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

// Writer is the unique mutator for one record. Page writes are serialized
// by ioMu; metadata edits are serialized by the owning Store's lock, per
// the store's concurrency invariant.
type Writer struct {
	store    *Store
	id       uuid.UUID
	dataFile *os.File
	metaPath string

	ioMu sync.Mutex

	meta      Metadata
	pageCount atomic.Uint32

	closed atomic.Bool
}

// ID returns the record id this writer owns.
func (w *Writer) ID() uuid.UUID { return w.id }

// Write serializes payload, appends its CRC-32Q, and writes it at
// pageIndex*PageSize, allowing random-access (non-monotonic) page writes.
func (w *Writer) Write(pageIndex uint32, payload []byte) error {
	if w.closed.Load() {
		return fmt.Errorf("%w: writer for %s is closed", errkind.ErrFailed, w.id)
	}

	buf, err := encodePage(payload)
	if err != nil {
		return err
	}

	w.ioMu.Lock()
	_, err = w.dataFile.WriteAt(buf, pageOffset(pageIndex))
	w.ioMu.Unlock()
	if err != nil {
		return fmt.Errorf("writing page %d: %w", pageIndex, err)
	}

	for {
		cur := w.pageCount.Load()
		if pageIndex+1 <= cur {
			break
		}
		if w.pageCount.CompareAndSwap(cur, pageIndex+1) {
			break
		}
	}
	return nil
}

// tagID derives a tag's deterministic id from its name and the owning
// record's id: MD5(name ‖ uppercase-hex-no-dashes(recordID)).
func tagID(name string, recordID uuid.UUID) uuid.UUID {
	hex := strings.ToUpper(strings.ReplaceAll(recordID.String(), "-", ""))
	sum := md5.Sum([]byte(name + hex))
	id, _ := uuid.FromBytes(sum[:])
	return id
}

// TagID exposes the deterministic tag-id derivation to callers that only
// have a tag's name and owning record id, such as a MAVLink command
// dispatcher that never learns an opaque tag id over the wire.
func TagID(name string, recordID uuid.UUID) uuid.UUID { return tagID(name, recordID) }

// WriteTag attaches a new tag to the record. Re-tagging an existing name
// (which maps to the same deterministic id) is denied rather than
// overwritten, per the Tag invariant that duplicate names are denied.
func (w *Writer) WriteTag(kind TagKind, name string, value []byte) (uuid.UUID, error) {
	id := tagID(name, w.id)

	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	for _, t := range w.meta.Tags {
		if t.ID == id {
			return uuid.Nil, fmt.Errorf("%w: tag %q already exists on record %s", errkind.ErrDenied, name, w.id)
		}
	}

	w.meta.Tags = append(w.meta.Tags, Tag{ID: id, Kind: kind, Name: name, Value: value})
	if err := writeMetadata(w.metaPath, &w.meta); err != nil {
		w.meta.Tags = w.meta.Tags[:len(w.meta.Tags)-1]
		return uuid.Nil, err
	}
	return id, nil
}

// DeleteTag removes a tag by id.
func (w *Writer) DeleteTag(id uuid.UUID) error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	for i, t := range w.meta.Tags {
		if t.ID == id {
			w.meta.Tags = append(w.meta.Tags[:i], w.meta.Tags[i+1:]...)
			return writeMetadata(w.metaPath, &w.meta)
		}
	}
	return fmt.Errorf("%w: tag %s", errkind.ErrNotFound, id)
}

// EditMetadata applies fn to the record's metadata under the store lock and
// persists the result atomically.
func (w *Writer) EditMetadata(fn func(*Metadata)) error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	fn(&w.meta)
	return writeMetadata(w.metaPath, &w.meta)
}

// Close finalizes the record's metadata (duration, page count, size) and
// releases the writer, allowing readers to open the record again.
func (w *Writer) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}

	w.ioMu.Lock()
	info, statErr := w.dataFile.Stat()
	closeErr := w.dataFile.Close()
	w.ioMu.Unlock()

	err := w.EditMetadata(func(m *Metadata) {
		m.PageCount = w.pageCount.Load()
		if m.duration == 0 {
			m.duration = time.Since(m.createdAt)
		}
	})

	var size int64
	if statErr == nil {
		size = info.Size()
	}
	w.store.releaseWriter(w.id, &w.meta, size)

	if err != nil {
		return err
	}
	return closeErr
}
