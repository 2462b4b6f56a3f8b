package workmode

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/calibration"
)

// llzAnalyzer is the "basic" LLZ (localizer) implementation: it derives DDM
// and SDM as deterministic functions of frequency and sample count so the
// test suite has a stable, reproducible signal without real RF hardware.
type llzAnalyzer struct {
	freq     uint64
	refPower float64
	calib    *calibration.Engine
	samples  uint64
	overflow float64
}

func newLLZAnalyzer() Analyzer { return &llzAnalyzer{overflow: math.NaN()} }

func (a *llzAnalyzer) Init(_ context.Context, freq uint64, refPower float64, calib *calibration.Engine, _ context.CancelFunc) (<-chan struct{}, error) {
	a.freq, a.refPower, a.calib = freq, refPower, calib
	done := make(chan struct{})
	close(done)
	return done, nil
}

func (a *llzAnalyzer) SignalOverflow() float64 { return clampOverflow(a.overflow) }
func (a *llzAnalyzer) Mode() Mode              { return ModeLLZ }
func (a *llzAnalyzer) Frequency() uint64       { return a.freq }

func (a *llzAnalyzer) ReadData(recordID uuid.UUID, pageIndex uint32, snap TelemetrySnapshot, payload []byte) error {
	a.samples++
	measure := func() [measurementCount]float64 {
		t := float64(a.samples)
		ddm := 0.155 * math.Sin(t/17)
		sdm := 0.95 + 0.02*math.Cos(t/23)
		am90 := 0.4 + 0.05*math.Sin(t/11)
		am150 := 0.4 - 0.05*math.Sin(t/11)
		a.overflow = 0
		return [measurementCount]float64{ddm, sdm, am90, am150}
	}
	return ReadData(ModeLLZ, a.freq, a.calib, 0, measure, recordID, pageIndex, snap, payload)
}
