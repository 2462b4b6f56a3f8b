// Package errkind defines the error kinds shared across the payload
// controller's components, so that request handlers can classify any
// component's error with a single errors.Is switch regardless of which
// package raised it.
package errkind

import "errors"

// Sentinel error kinds. Components wrap these with fmt.Errorf("...: %w", ...)
// to add context; callers should compare with errors.Is against these
// values, never against the wrapped message text.
var (
	ErrBusy        = errors.New("busy")
	ErrNotFound    = errors.New("not found")
	ErrDenied      = errors.New("denied")
	ErrCorrupt     = errors.New("corrupt")
	ErrUnsupported = errors.New("unsupported")
	ErrInProgress  = errors.New("in progress")
	ErrFailed      = errors.New("failed")
)

// Kind classifies an error into one of the seven sentinel kinds above, for
// building response frames that carry a machine-readable result code.
// It returns ErrFailed's kind ("failed") if err doesn't match any of them.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDenied):
		return "denied"
	case errors.Is(err, ErrCorrupt):
		return "corrupt"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrInProgress):
		return "in_progress"
	default:
		return "failed"
	}
}
