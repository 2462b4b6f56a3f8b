package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

// ErrPayloadTooLarge is returned when a caller tries to write more than
// PayloadSize bytes into a single page.
var ErrPayloadTooLarge = errors.New("store: payload exceeds page capacity")

// encodePage lays payload into a PageSize buffer: 4-byte CRC-32Q header
// followed by the payload, zero-padded to PayloadSize.
func encodePage(payload []byte) ([]byte, error) {
	if len(payload) > PayloadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), PayloadSize)
	}

	buf := make([]byte, PageSize)
	copy(buf[crcSize:], payload)
	binary.BigEndian.PutUint32(buf[:crcSize], crc32Q(buf[crcSize:]))
	return buf, nil
}

// decodePage validates a raw page buffer's CRC and copies its payload into
// dst, up to len(dst) bytes. It returns errkind.ErrCorrupt if the stored
// CRC does not match the recomputed one.
func decodePage(raw []byte, dst []byte) error {
	if len(raw) != PageSize {
		return fmt.Errorf("store: short page: got %d bytes, want %d", len(raw), PageSize)
	}

	stored := binary.BigEndian.Uint32(raw[:crcSize])
	computed := crc32Q(raw[crcSize:])
	if stored != computed {
		return fmt.Errorf("%w: CRC mismatch: stored %08x, computed %08x", errkind.ErrCorrupt, stored, computed)
	}

	copy(dst, raw[crcSize:])
	return nil
}
