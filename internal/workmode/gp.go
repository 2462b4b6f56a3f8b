package workmode

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/calibration"
)

// gpAnalyzer is the "basic" glide-path implementation, structurally
// identical to llzAnalyzer but with its own deterministic waveform.
type gpAnalyzer struct {
	freq     uint64
	refPower float64
	calib    *calibration.Engine
	samples  uint64
	overflow float64
}

func newGPAnalyzer() Analyzer { return &gpAnalyzer{overflow: math.NaN()} }

func (a *gpAnalyzer) Init(_ context.Context, freq uint64, refPower float64, calib *calibration.Engine, _ context.CancelFunc) (<-chan struct{}, error) {
	a.freq, a.refPower, a.calib = freq, refPower, calib
	done := make(chan struct{})
	close(done)
	return done, nil
}

func (a *gpAnalyzer) SignalOverflow() float64 { return clampOverflow(a.overflow) }
func (a *gpAnalyzer) Mode() Mode              { return ModeGP }
func (a *gpAnalyzer) Frequency() uint64       { return a.freq }

func (a *gpAnalyzer) ReadData(recordID uuid.UUID, pageIndex uint32, snap TelemetrySnapshot, payload []byte) error {
	a.samples++
	measure := func() [measurementCount]float64 {
		t := float64(a.samples)
		ddm := 0.0875 * math.Sin(t/13)
		sdm := 0.8 + 0.03*math.Cos(t/19)
		am90 := 0.4 + 0.04*math.Sin(t/7)
		am150 := 0.4 - 0.04*math.Sin(t/7)
		a.overflow = 0
		return [measurementCount]float64{ddm, sdm, am90, am150}
	}
	return ReadData(ModeGP, a.freq, a.calib, 1, measure, recordID, pageIndex, snap, payload)
}
