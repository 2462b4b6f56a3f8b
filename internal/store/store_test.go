package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()

	w, err := s.CreateFile(id, "flight-01", "LLZ", 109_500_000)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	payload := make([]byte, PayloadSize)
	copy(payload, "hello-page-0")
	if err := w.Write(0, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := s.OpenFile(id)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	got := make([]byte, PayloadSize)
	if err := r.Read(0, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got[:12]) != "hello-page-0" {
		t.Fatalf("got %q", got[:12])
	}
}

func TestOpenFileWhileWriterOpenFails(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()

	w, err := s.CreateFile(id, "rec", "LLZ", 1)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	defer w.Close()

	if _, err := s.OpenFile(id); !errors.Is(err, errkind.ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
}

func TestDeleteFileWhileWriterOpenFails(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()

	w, err := s.CreateFile(id, "rec", "LLZ", 1)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	defer w.Close()

	if err := s.DeleteFile(id); !errors.Is(err, errkind.ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
}

func TestOpenFileNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.OpenFile(uuid.New()); !errors.Is(err, errkind.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCorruptPageDetected(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()

	w, err := s.CreateFile(id, "rec", "LLZ", 1)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := w.Write(0, make([]byte, PayloadSize)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Flip a byte in the payload region to corrupt the CRC. Reader handles
	// are read-only, so the data file is opened for writing separately.
	f, err := os.OpenFile(filepath.Join(s.recordDir(id), dataFileName), os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("opening data file: %v", err)
	}
	if _, err := f.WriteAt([]byte{0xFF}, crcSize+1); err != nil {
		_ = f.Close()
		t.Fatalf("corrupting page: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing data file: %v", err)
	}

	r, err := s.OpenFile(id)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	got := make([]byte, PayloadSize)
	if err := r.Read(0, got); !errors.Is(err, errkind.ErrCorrupt) {
		t.Fatalf("got %v, want ErrCorrupt", err)
	}
}

func TestWriteTagDeterministicAndDenyDuplicate(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()

	w, err := s.CreateFile(id, "rec", "LLZ", 1)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	defer w.Close()

	tagID1, err := w.WriteTag(TagString, "note", []byte("glide-check"))
	if err != nil {
		t.Fatalf("WriteTag: %v", err)
	}

	want := tagID("note", id)
	if tagID1 != want {
		t.Fatalf("got %s, want %s", tagID1, want)
	}

	if _, err := w.WriteTag(TagString, "note", []byte("other")); !errors.Is(err, errkind.ErrDenied) {
		t.Fatalf("got %v, want ErrDenied on duplicate tag name", err)
	}
}

func TestItemCountClampsToSkipBeyondTotal(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()

	w, err := s.CreateFile(id, "rec", "LLZ", 1)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	for i := uint32(0); i < 5; i++ {
		if err := w.Write(i, make([]byte, PayloadSize)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := s.OpenFile(id)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	n, err := r.ItemCount(10, 5)
	if err != nil {
		t.Fatalf("ItemCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("got %d, want 0", n)
	}

	n, err = r.ItemCount(0, 100)
	if err != nil {
		t.Fatalf("ItemCount: %v", err)
	}
	if n != 5 {
		t.Fatalf("got %d, want 5", n)
	}
}

func TestGetFilesCreationOrder(t *testing.T) {
	s := newTestStore(t)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id := uuid.New()
		ids = append(ids, id)
		w, err := s.CreateFile(id, "rec", "LLZ", 1)
		if err != nil {
			t.Fatalf("CreateFile: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	got, err := s.GetFiles()
	if err != nil {
		t.Fatalf("GetFiles: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("got %d ids, want %d", len(got), len(ids))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("index %d: got %s, want %s", i, got[i], ids[i])
		}
	}
}

func TestEditRecordMetadataOnClosedRecord(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()

	w, err := s.CreateFile(id, "rec", "LLZ", 1)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tag := Tag{ID: uuid.New(), Kind: TagString, Name: "note", Value: []byte("x")}
	if err := s.EditRecordMetadata(id, func(m *Metadata) { m.Tags = append(m.Tags, tag) }); err != nil {
		t.Fatalf("EditRecordMetadata: %v", err)
	}

	r, err := s.OpenFile(id)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	meta, err := r.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(meta.Tags) != 1 || meta.Tags[0].Name != "note" {
		t.Fatalf("got tags %+v", meta.Tags)
	}
}

func TestEditRecordMetadataWhileWriterOpenFails(t *testing.T) {
	s := newTestStore(t)
	id := uuid.New()

	w, err := s.CreateFile(id, "rec", "LLZ", 1)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	defer w.Close()

	if err := s.EditRecordMetadata(id, func(m *Metadata) {}); !errors.Is(err, errkind.ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
}
