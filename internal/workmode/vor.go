package workmode

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/calibration"
)

// vorAnalyzer is the "basic" VOR (omnidirectional range) implementation,
// deriving a bearing-like quantity from the sample count deterministically.
type vorAnalyzer struct {
	freq     uint64
	refPower float64
	calib    *calibration.Engine
	samples  uint64
	overflow float64
}

func newVORAnalyzer() Analyzer { return &vorAnalyzer{overflow: math.NaN()} }

func (a *vorAnalyzer) Init(_ context.Context, freq uint64, refPower float64, calib *calibration.Engine, _ context.CancelFunc) (<-chan struct{}, error) {
	a.freq, a.refPower, a.calib = freq, refPower, calib
	done := make(chan struct{})
	close(done)
	return done, nil
}

func (a *vorAnalyzer) SignalOverflow() float64 { return clampOverflow(a.overflow) }
func (a *vorAnalyzer) Mode() Mode              { return ModeVOR }
func (a *vorAnalyzer) Frequency() uint64       { return a.freq }

func (a *vorAnalyzer) ReadData(recordID uuid.UUID, pageIndex uint32, snap TelemetrySnapshot, payload []byte) error {
	a.samples++
	measure := func() [measurementCount]float64 {
		t := float64(a.samples)
		bearing := math.Mod(t*3, 360)
		am30 := 0.3 + 0.02*math.Sin(t/9)
		refPhase := math.Mod(t*3+9960/60, 360)
		a.overflow = 0
		return [measurementCount]float64{bearing, am30, refPhase, 0}
	}
	return ReadData(ModeVOR, a.freq, a.calib, 2, measure, recordID, pageIndex, snap, payload)
}

// DefaultRegistry builds a Registry with the "basic" implementation
// registered (and enabled) for every non-Idle mode, matching a minimal
// Analyzers configuration where each mode has exactly one implementation.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ModeLLZ, "basic", newLLZAnalyzer)
	r.Register(ModeGP, "basic", newGPAnalyzer)
	r.Register(ModeVOR, "basic", newVORAnalyzer)
	_ = r.Enable(ModeLLZ, "basic")
	_ = r.Enable(ModeGP, "basic")
	_ = r.Enable(ModeVOR, "basic")
	return r
}
