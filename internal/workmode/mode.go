// Package workmode hosts the per-mode signal analyzers and composes their
// output plus telemetry into the payload written to a record page.
package workmode

import "github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"

// Mode is the work-mode enum. Idle is the zero value and is a singleton
// with no analyzer and no side effects.
type Mode int

const (
	ModeIdle Mode = iota
	ModeLLZ
	ModeGP
	ModeVOR
)

func (m Mode) String() string {
	switch m {
	case ModeLLZ:
		return "LLZ"
	case ModeGP:
		return "GP"
	case ModeVOR:
		return "VOR"
	default:
		return "Idle"
	}
}

// Bit returns the mode's bit in the SupportedModes heartbeat bitmask.
func (m Mode) Bit() uint32 {
	if m == ModeIdle {
		return 0
	}
	return 1 << uint(m)
}

// ParseMode looks up a Mode by name. The SetMode command dispatcher does not
// use it: it converts the numeric mode parameter directly.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "Idle", "":
		return ModeIdle, nil
	case "LLZ":
		return ModeLLZ, nil
	case "GP":
		return ModeGP, nil
	case "VOR":
		return ModeVOR, nil
	default:
		return 0, errkind.ErrUnsupported
	}
}
