package workmode

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/calibration"
	"github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"
)

// Analyzer is the per-mode polymorphic signal-analysis collaborator.
// Signal-processing math itself is a collaborator's concern; the concrete
// analyzers here are deterministic stand-ins exercising the same interface
// a real DSP implementation would.
type Analyzer interface {
	// Init starts the analyzer for the given frequency and reference power,
	// returning a channel closed when the analyzer has released any
	// background resources following cancel, and an error if the
	// frequency/refPower combination cannot be initialized.
	Init(ctx context.Context, freq uint64, refPower float64, calib *calibration.Engine, cancel context.CancelFunc) (<-chan struct{}, error)

	// SignalOverflow reports the latest overflow reading, NaN if unknown.
	SignalOverflow() float64

	Mode() Mode
	Frequency() uint64

	// ReadData composes a mode-specific payload for pageIndex/recordID and
	// writes it into payload.
	ReadData(recordID uuid.UUID, pageIndex uint32, snap TelemetrySnapshot, payload []byte) error
}

// Constructor builds an Analyzer for a given implementation name.
type Constructor func() Analyzer

// Registry maps (Mode, implName) to analyzer constructors, populated at
// startup from the Analyzers configuration map, data-driven
// rather than a type switch so exactly one implementation per mode can be
// enabled without a code change.
type Registry struct {
	constructors map[Mode]map[string]Constructor
	enabled      map[Mode]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[Mode]map[string]Constructor),
		enabled:      make(map[Mode]string),
	}
}

// Register adds an implementation for mode under implName.
func (r *Registry) Register(mode Mode, implName string, ctor Constructor) {
	if r.constructors[mode] == nil {
		r.constructors[mode] = make(map[string]Constructor)
	}
	r.constructors[mode][implName] = ctor
}

// Enable marks implName as the single active implementation for mode,
// honoring the "exactly one enabled per mode" invariant.
func (r *Registry) Enable(mode Mode, implName string) error {
	if _, ok := r.constructors[mode][implName]; !ok {
		return fmt.Errorf("%w: mode %s implementation %q", errkind.ErrUnsupported, mode, implName)
	}
	r.enabled[mode] = implName
	return nil
}

// SupportedModes returns the OR of every mode with at least one registered
// implementation, for the heartbeat's SupportedModes bitmask.
func (r *Registry) SupportedModes() uint32 {
	var bits uint32
	for mode := range r.constructors {
		bits |= mode.Bit()
	}
	return bits
}

// New constructs the enabled analyzer for mode, or ErrUnsupported if mode
// has no registered/enabled implementation.
func (r *Registry) New(mode Mode) (Analyzer, error) {
	if mode == ModeIdle {
		return nil, fmt.Errorf("%w: mode Idle has no analyzer", errkind.ErrUnsupported)
	}
	name, ok := r.enabled[mode]
	if !ok {
		return nil, fmt.Errorf("%w: no implementation enabled for mode %s", errkind.ErrUnsupported, mode)
	}
	ctor := r.constructors[mode][name]
	return ctor(), nil
}

// ReadData is the shared composition logic every stub analyzer delegates
// to: page index + record id, telemetry zero-filled where absent,
// analyzer-filled measurements, calibration-adjusted values.
func ReadData(mode Mode, freq uint64, calib *calibration.Engine, calibTable int, measure func() [measurementCount]float64,
	recordID uuid.UUID, pageIndex uint32, snap TelemetrySnapshot, payload []byte) error {

	if len(payload) < EncodedSize {
		return fmt.Errorf("%w: payload buffer too small for mode %s", errkind.ErrFailed, mode)
	}

	p := &Payload{PageIndex: pageIndex, RecordID: recordID}
	p.composeFromTelemetry(snap)
	p.Measurements = measure()

	if calib != nil {
		for i, v := range p.Measurements {
			if adjusted, err := calib.Value(calibTable, v); err == nil {
				p.Measurements[i] = adjusted
			}
		}
	}

	p.Encode(payload)
	return nil
}

func clampOverflow(v float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	return v
}
