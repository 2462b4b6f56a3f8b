// Package switcher implements the Mode Switcher: the core state machine
// over work modes, sample-tick loop, current-record lifecycle and the
// MAVLink record-request handlers.
package switcher

import (
	"github.com/google/uuid"

	"github.com/skyward-avionics/sdr-payload/internal/workmode"
)

// State is the switcher's coarse-grained state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateRecording
	StateErroring
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "Active"
	case StateRecording:
		return "Recording"
	case StateErroring:
		return "Erroring"
	default:
		return "Idle"
	}
}

// CalibState mirrors the heartbeat's CalibState enum.
type CalibState int

const (
	CalibNotSupported CalibState = iota
	CalibOk
	CalibProgress
)

func (c CalibState) String() string {
	switch c {
	case CalibOk:
		return "Ok"
	case CalibProgress:
		return "Progress"
	default:
		return "NotSupported"
	}
}

// MissionState mirrors the mission executor's published state.
type MissionState int

const (
	MissionIdle MissionState = iota
	MissionInProgress
	MissionError
)

func (m MissionState) String() string {
	switch m {
	case MissionInProgress:
		return "InProgress"
	case MissionError:
		return "Error"
	default:
		return "Idle"
	}
}

// Heartbeat is the published state reported in the SDR extended heartbeat.
type Heartbeat struct {
	SupportedModes    uint32
	CurrentMode       workmode.Mode
	RecordCount       int64
	Size              int64
	CurrentRecordGUID uuid.UUID
	CurrentRecordName string
	RefPower          float64
	SignalOverflow    float64
	CalibState        CalibState
	CalibTableCount   int
	MissionState      MissionState
}
