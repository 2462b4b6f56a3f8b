// Package store implements the record store: a hierarchical, file-backed
// collection of records, each a metadata blob plus a fixed-size page file,
// with tag CRUD and concurrent reader/single-writer arbitration.
package store

import (
	"time"

	"github.com/google/uuid"
)

// PageSize is the size in bytes of a single record data page, including its
// leading CRC.
const PageSize = 256

// crcSize is the width of the CRC-32Q header at the start of every page.
const crcSize = 4

// PayloadSize is the number of bytes of mode-specific payload a page can
// hold once the CRC header is accounted for.
const PayloadSize = PageSize - crcSize

// TagKind enumerates the value types a Tag can carry.
type TagKind int

const (
	TagInt64 TagKind = iota
	TagReal64
	TagBytes
	TagString
)

func (k TagKind) String() string {
	switch k {
	case TagInt64:
		return "int64"
	case TagReal64:
		return "real64"
	case TagBytes:
		return "bytes"
	case TagString:
		return "string"
	default:
		return "unknown"
	}
}

// Tag is a named annotation attached to a record at a specific sample time.
type Tag struct {
	ID    uuid.UUID `json:"Id"`
	Kind  TagKind   `json:"Type"`
	Name  string    `json:"Name"`
	Value []byte    `json:"Value"`
}

// SchemaVersion is written into every metadata.json produced by this
// package. Absence of the field on read is treated as version 1, per the
// chosen resolution for metadata forward-compatibility.
const SchemaVersion = 1

// Metadata is the persisted, mutable description of a record. It is
// serialized to metadata.json inside the record's directory.
type Metadata struct {
	SchemaVersion int           `json:"SchemaVersion"`
	Name          string        `json:"Name"`
	Mode          string        `json:"Mode"`
	Frequency     uint64        `json:"Frequency"`
	CreatedAtUnix int64         `json:"CreatedAtMicros"`
	DurationSec   float64       `json:"DurationSec"`
	PageCount     uint32        `json:"PageCount"`
	Tags          []Tag         `json:"Tags"`
	createdAt     time.Time     // derived, not serialized
	duration      time.Duration // derived, not serialized
}

// CreatedAt returns the record's creation timestamp.
func (m *Metadata) CreatedAt() time.Time { return m.createdAt }

// Duration returns the record's finalized duration.
func (m *Metadata) Duration() time.Duration { return m.duration }

func (m *Metadata) syncDerived() {
	m.createdAt = time.UnixMicro(m.CreatedAtUnix)
	m.duration = time.Duration(m.DurationSec * float64(time.Second))
}

func (m *Metadata) syncSerialized() {
	m.CreatedAtUnix = m.createdAt.UnixMicro()
	m.DurationSec = m.duration.Seconds()
}

// Entry is the summary of a record returned by TryGetEntry and GetFiles,
// without loading its full tag list.
type Entry struct {
	ID        uuid.UUID
	Name      string
	Mode      string
	Frequency uint64
	CreatedAt time.Time
	Size      int64
	PageCount uint32
}
