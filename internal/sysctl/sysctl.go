// Package sysctl dispatches the host power actions the system-control
// request can trigger: reboot, shutdown, and a process-level restart. The
// actual command invoked is platform-specific; see sysctl_linux.go,
// sysctl_windows.go and sysctl_other.go.
package sysctl

import "github.com/skyward-avionics/sdr-payload/internal/switcher/errkind"

// Action identifies a requested system-control operation.
type Action int

const (
	Reboot Action = iota
	Shutdown
	Restart
)

func (a Action) String() string {
	switch a {
	case Reboot:
		return "Reboot"
	case Shutdown:
		return "Shutdown"
	case Restart:
		return "Restart"
	default:
		return "Unknown"
	}
}

// ErrUnsupported is returned when the host platform has no implementation
// for a given action.
var ErrUnsupported = errkind.ErrUnsupported

// Execute carries out action. Reboot and Shutdown hand off to the host OS
// and do not return on success; Restart is handled by the caller, which is
// expected to exit the process with status 0 once Execute returns nil for
// it, matching the teacher's pattern of letting a supervising process
// manager perform the actual respawn.
func Execute(action Action) error {
	switch action {
	case Reboot:
		return reboot()
	case Shutdown:
		return shutdown()
	case Restart:
		return nil
	default:
		return ErrUnsupported
	}
}
