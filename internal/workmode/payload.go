package workmode

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/telemetry"
)

// FixTypeNoGPS mirrors MAVLink's GPS_FIX_TYPE_NO_GPS, used to zero-fill the
// fix-type field when no GNSS snapshot is available.
const FixTypeNoGPS uint8 = 0

// TelemetrySnapshot is the subset of the telemetry source's observables
// ReadData composes into a page payload.
type TelemetrySnapshot struct {
	GNSS        telemetry.GNSS
	HasGNSS     bool
	Attitude    telemetry.Attitude
	HasAttitude bool
	Position    telemetry.GlobalPosition
	HasPosition bool
}

// measurementCount is the number of mode-specific float64 measurement slots
// carried by every payload, wide enough for LLZ's and GP's DDM, SDM, AM90
// and AM150, or VOR's bearing, AM30 and reference phase.
const measurementCount = 4

// Payload is the fixed-layout, mode-agnostic sample record written into one
// data page. Its encoded size is well under store.PayloadSize.
type Payload struct {
	PageIndex    uint32
	RecordID     uuid.UUID
	FixType      uint8
	Lat, Lon     float64
	Alt          float64
	Roll         float64
	Pitch        float64
	Yaw          float64
	PosLat       float64
	PosLon       float64
	RelativeAlt  float64
	Heading      float64
	Measurements [measurementCount]float64
}

// EncodedSize is the fixed number of bytes Encode writes.
const EncodedSize = 4 + 16 + 1 + 8*(3+3+4+measurementCount)

// Encode serializes p into dst, which must be at least EncodedSize bytes.
// Bytes beyond EncodedSize are left untouched (the page payload is larger
// than any one mode currently needs).
func (p *Payload) Encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], p.PageIndex)
	copy(dst[4:20], p.RecordID[:])
	dst[20] = p.FixType

	off := 21
	putF64 := func(v float64) {
		binary.LittleEndian.PutUint64(dst[off:off+8], math.Float64bits(v))
		off += 8
	}
	putF64(p.Lat)
	putF64(p.Lon)
	putF64(p.Alt)
	putF64(p.Roll)
	putF64(p.Pitch)
	putF64(p.Yaw)
	putF64(p.PosLat)
	putF64(p.PosLon)
	putF64(p.RelativeAlt)
	putF64(p.Heading)
	for _, m := range p.Measurements {
		putF64(m)
	}
}

// composeFromTelemetry fills the GNSS/attitude/position fields, zero-filling
// (with FixType=NoGPS) whichever snapshots are absent.
func (p *Payload) composeFromTelemetry(snap TelemetrySnapshot) {
	if snap.HasGNSS {
		p.Lat, p.Lon, p.Alt, p.FixType = snap.GNSS.Latitude, snap.GNSS.Longitude, snap.GNSS.Altitude, snap.GNSS.FixType
	} else {
		p.FixType = FixTypeNoGPS
	}
	if snap.HasAttitude {
		p.Roll, p.Pitch, p.Yaw = snap.Attitude.Roll, snap.Attitude.Pitch, snap.Attitude.Yaw
	}
	if snap.HasPosition {
		p.PosLat, p.PosLon, p.RelativeAlt, p.Heading =
			snap.Position.Latitude, snap.Position.Longitude, snap.Position.RelativeAlt, snap.Position.Heading
	}
}
