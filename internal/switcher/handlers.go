package switcher

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/store"
	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

// ListRecords returns up to count record summaries starting at skip, in
// creation order. MAVLink pagination/pacing is a concern of whichever layer
// actually frames and transmits these over the wire, not of this method.
func (sw *Switcher) ListRecords(skip, count uint32) ([]store.Entry, error) {
	ids, err := sw.store.GetFiles()
	if err != nil {
		return nil, err
	}

	lo, hi := clampRange(skip, count, uint32(len(ids)))
	out := make([]store.Entry, 0, hi-lo)
	for _, id := range ids[lo:hi] {
		entry, ok, err := sw.store.TryGetEntry(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// GetRecordEntry returns the summary for a single record.
func (sw *Switcher) GetRecordEntry(id uuid.UUID) (store.Entry, error) {
	entry, ok, err := sw.store.TryGetEntry(id)
	if err != nil {
		return store.Entry{}, err
	}
	if !ok {
		return store.Entry{}, fmt.Errorf("%w: record %s", errkind.ErrNotFound, id)
	}
	return entry, nil
}

// ListTags returns up to count tag ids on a record starting at skip.
func (sw *Switcher) ListTags(recordID uuid.UUID, skip, count uint32) ([]uuid.UUID, error) {
	r, err := sw.store.OpenFile(recordID)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.GetTagIds(skip, count)
}

// GetTag returns a single tag by id on a record.
func (sw *Switcher) GetTag(recordID, tagID uuid.UUID) (*store.Tag, error) {
	r, err := sw.store.OpenFile(recordID)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadTag(tagID)
}

// DataPageCount reports how many pages of recordID fall in [skip, skip+count).
func (sw *Switcher) DataPageCount(recordID uuid.UUID, skip, count uint32) (int, error) {
	r, err := sw.store.OpenFile(recordID)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return r.ItemCount(skip, count)
}

// ReadDataPage returns the decoded payload of a single page of recordID.
func (sw *Switcher) ReadDataPage(recordID uuid.UUID, pageIndex uint32) ([]byte, error) {
	r, err := sw.store.OpenFile(recordID)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	payload := make([]byte, store.PayloadSize)
	if err := r.Read(pageIndex, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// DeleteRecord removes a record by id. Denied while the record is the one
// currently open for recording, since OpenFile/DeleteFile already enforce
// single-writer exclusivity but the caller gets a clearer reason here.
func (sw *Switcher) DeleteRecord(id uuid.UUID) error {
	sw.mu.Lock()
	current := sw.currentRecordID
	sw.mu.Unlock()

	if current == id {
		return fmt.Errorf("%w: record %s is currently being recorded", errkind.ErrDenied, id)
	}
	return sw.store.DeleteFile(id)
}

// DeleteTag removes a tag from a record. If the record is the one currently
// open for recording, the deletion goes through its live Writer so the
// in-memory metadata the Writer will flush on Close stays consistent;
// otherwise it goes straight to the on-disk metadata via the Store.
func (sw *Switcher) DeleteTag(recordID, tagID uuid.UUID) error {
	sw.mu.Lock()
	w := sw.currentWriter
	current := sw.currentRecordID
	sw.mu.Unlock()

	if w != nil && current == recordID {
		return w.DeleteTag(tagID)
	}

	found := false
	err := sw.store.EditRecordMetadata(recordID, func(m *store.Metadata) {
		for i, t := range m.Tags {
			if t.ID == tagID {
				m.Tags = append(m.Tags[:i], m.Tags[i+1:]...)
				found = true
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: tag %s", errkind.ErrNotFound, tagID)
	}
	return nil
}

// clampRange mirrors store's page/tag range clamp: skip >= total yields a
// zero-length result, and hi never exceeds total.
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
