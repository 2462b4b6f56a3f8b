package app

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// packASCII reinterprets s's bytes four at a time as float32 bit patterns,
// carrying opaque bytes over a field meant for numbers: COMMAND_LONG's
// seven params are the only
// argument slots this payload's command surface gets without a hand-rolled
// dialect, so a short string is packed into as many of them as it needs.
func packASCII(s string, params []float32) {
	var buf [4]byte
	for i := range params {
		for j := 0; j < 4; j++ {
			if n := i*4 + j; n < len(s) {
				buf[j] = s[n]
			} else {
				buf[j] = 0
			}
		}
		params[i] = math.Float32frombits(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
	}
}

func unpackASCII(params []float32) string {
	var b strings.Builder
	for _, p := range params {
		bits := math.Float32bits(p)
		for j := 0; j < 4; j++ {
			c := byte(bits >> (8 * j))
			if c == 0 {
				return b.String()
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

// packUUID spreads id's 16 bytes across four float32 param slots.
func packUUID(id uuid.UUID, params []float32) {
	for i := 0; i < 4; i++ {
		params[i] = math.Float32frombits(
			uint32(id[i*4]) | uint32(id[i*4+1])<<8 | uint32(id[i*4+2])<<16 | uint32(id[i*4+3])<<24)
	}
}

func unpackUUID(params []float32) uuid.UUID {
	var id uuid.UUID
	for i := 0; i < 4; i++ {
		bits := math.Float32bits(params[i])
		id[i*4] = byte(bits)
		id[i*4+1] = byte(bits >> 8)
		id[i*4+2] = byte(bits >> 16)
		id[i*4+3] = byte(bits >> 24)
	}
	return id
}
