package switcher

import (
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/skyward-avionics/sdr-payload/internal/store"
	"github.com/skyward-avionics/sdr-payload/internal/workmode"
)

// tick is the single-flight sample tick. It never runs concurrently with
// itself (guarded by tickBusy) and never blocks holding sw.mu across the
// MAVLink send, since the state it needs is copied out under a short lock
// up front.
func (sw *Switcher) tick() {
	if !sw.tickBusy.CompareAndSwap(false, true) {
		sw.skipped.Add(1)
		return
	}
	start := time.Now()
	defer func() {
		sw.ringMu.Lock()
		sw.ring.push(time.Since(start))
		sw.ringMu.Unlock()
		sw.tickBusy.Store(false)
	}()

	index := sw.sampleIndex.Add(1) - 1

	sw.mu.Lock()
	mode := sw.mode
	analyzer := sw.analyzer
	ratio := sw.ratio
	writer := sw.currentWriter
	recordID := sw.currentRecordID
	sw.mu.Unlock()

	if analyzer == nil || sw.draining.Load() {
		sw.skipped.Add(1)
		return
	}

	payload := make([]byte, store.PayloadSize)
	snap := sw.telemetrySnapshot()
	if err := analyzer.ReadData(recordID, uint32(index), snap, payload); err != nil {
		sw.errored.Add(1)
		sw.logger.Error("switcher: tick failed to compose payload", "mode", mode, "error", err)
		return
	}

	sw.mu.Lock()
	sw.signalOver = analyzer.SignalOverflow()
	sw.mu.Unlock()

	if ratio == 0 {
		ratio = 1
	}
	if index%uint64(ratio) == 0 && sw.sender != nil {
		if err := sw.sender.Send(buildSampleFrame(mode, payload)); err != nil {
			sw.logger.Warn("switcher: sample broadcast failed", "error", err)
		}
	}

	if writer != nil {
		if err := writer.Write(uint32(index), payload); err != nil {
			sw.errored.Add(1)
			sw.logger.Error("switcher: tick failed to persist page", "index", index, "error", err)
			return
		}
	}
	sw.completed.Add(1)
}

func (sw *Switcher) telemetrySnapshot() workmode.TelemetrySnapshot {
	if sw.telemetry == nil {
		return workmode.TelemetrySnapshot{}
	}
	var snap workmode.TelemetrySnapshot
	snap.GNSS, snap.HasGNSS = sw.telemetry.GNSS()
	snap.Attitude, snap.HasAttitude = sw.telemetry.Attitude()
	snap.Position, snap.HasPosition = sw.telemetry.Position()
	return snap
}

// buildSampleFrame packs the thinned payload's leading bytes into a
// MAVLink generic-data frame. The full 252-byte page is persisted
// unconditionally by the record store; only this bounded preview is
// broadcast live, since the wire codec for a full custom payload dialect
// is out of scope and the common dialect's DATA96 message is the closest
// standard vehicle for an opaque application payload of this size.
func buildSampleFrame(mode workmode.Mode, payload []byte) *common.MessageData96 {
	var data [96]byte
	n := copy(data[:], payload)
	return &common.MessageData96{
		Type: uint8(mode),
		Len:  uint8(n),
		Data: data,
	}
}
